// ingest.go
package email

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
)

var (
	ErrNoDataAttachment = errors.New("邮件中没有数据附件")
	ErrAlreadyProcessed = errors.New("邮件已处理过")
)

// DataFileHandler 把目标邮件中与数据文件同类型的附件保存为数据文件
// 保存后由数据文件监听负责重新加载
type DataFileHandler struct {
	DataFile string

	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex
}

func NewDataFileHandler(dataFile string) *DataFileHandler {
	return &DataFileHandler{
		DataFile:      dataFile,
		processedUIDs: make(map[uint32]bool),
	}
}

func (h *DataFileHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *DataFileHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 同一封邮件只保存一次，重复的邮件返回 ErrAlreadyProcessed
func (h *DataFileHandler) Handle(email *Email) error {
	if h.isProcessed(email.UID) {
		return ErrAlreadyProcessed
	}

	att := h.pickAttachment(email)
	if att == nil {
		return fmt.Errorf("%w: %s", ErrNoDataAttachment, email.Subject)
	}
	if err := writeAtomic(h.DataFile, att.Content); err != nil {
		return fmt.Errorf("保存附件失败: %w", err)
	}

	h.markAsProcessed(email.UID)
	return nil
}

// pickAttachment 第一个扩展名与数据文件一致的附件
func (h *DataFileHandler) pickAttachment(email *Email) *Attachment {
	want := strings.ToLower(filepath.Ext(h.DataFile))
	for _, att := range email.Attachments {
		if strings.ToLower(filepath.Ext(att.Filename)) == want {
			return att
		}
	}
	return nil
}

// writeAtomic 先写临时文件再改名，监听方不会读到写了一半的文件
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".incoming-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// CheckAndProcessEmails 取主题包含 keyword 的最新一封未读邮件交给 handler
// 没有目标邮件或目标邮件已处理过时返回 nil, nil
func CheckAndProcessEmails(mailService MailService, handler EmailHandler, keyword string, logger *storage.Logger) (*Email, error) {
	startTime := time.Now()
	logger.Info("开始检查邮箱...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	emails, err := mailService.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("没有新邮件")
		return nil, nil
	}

	target := filterLatestTargetEmail(emails, keyword)
	if target == nil {
		logger.Info("没有目标邮件")
		return nil, nil
	}

	if err := handler.Handle(target); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Debug(fmt.Sprintf("邮件 %q 已处理过", target.Subject))
			return nil, nil
		}
		return target, err
	}
	logger.Info(fmt.Sprintf("处理邮件 %q (%s) 完成，耗时: %v", target.Subject, target.From, time.Since(startTime)))
	return target, nil
}

// filterLatestTargetEmail 主题包含关键词的邮件中日期最新的一封
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targetEmails []*Email
	for _, email := range emails {
		if strings.Contains(email.Subject, keyword) {
			targetEmails = append(targetEmails, email)
		}
	}
	if len(targetEmails) == 0 {
		return nil
	}

	sort.SliceStable(targetEmails, func(i, j int) bool {
		return targetEmails[i].Date.After(targetEmails[j].Date)
	})
	return targetEmails[0]
}
