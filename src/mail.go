package main

import (
	"errors"
	"fmt"

	"github.com/alvinn6o/450-Project-2-Team-2/src/config"
	"github.com/alvinn6o/450-Project-2-Team-2/src/datapush"
	"github.com/alvinn6o/450-Project-2-Team-2/src/datasource/email"
	"github.com/spf13/cobra"
)

var fetchMailCmd = &cobra.Command{
	Use:   "fetch-mail",
	Short: "检查一次邮箱，把最新的数据附件保存为数据文件",
	Long: `按 mail.inbox 配置登录 IMAP 邮箱，取主题包含 mail.inbox.subject 的最新未读邮件，
把与数据文件同类型(csv/xlsx)的附件保存到 data_file。
serve 运行时会按 mail.inbox.interval 自动执行。`,
	RunE: runFetchMail,
}

func init() {
	rootCmd.AddCommand(fetchMailCmd)
}

// mailbox 定时收取数据附件
type mailbox struct {
	service email.MailService
	handler *email.DataFileHandler
	subject string
}

func newMailbox(cfg *config.Config) *mailbox {
	in := cfg.Mail.Inbox
	if in.Server == "" {
		return nil
	}
	return &mailbox{
		service: email.NewEmailClient(in.Server, in.Username, in.Password),
		handler: email.NewDataFileHandler(cfg.DataFile),
		subject: in.Subject,
	}
}

// check 保存了新的数据文件时返回 true，已处理过的邮件返回 false
func (m *mailbox) check(a *app) (bool, error) {
	got, err := email.CheckAndProcessEmails(m.service, m.handler, m.subject, a.logger)
	if errors.Is(err, email.ErrNoDataAttachment) {
		a.logger.Warning(err.Error())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got != nil, nil
}

func newMailPusher(cfg *config.Config) *datapush.MailPusher {
	out := cfg.Mail.Outbox
	return datapush.NewMailPusher(out.Server, out.Username, out.Password, out.To, out.Subject)
}

func runFetchMail(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m := newMailbox(a.cfg)
	if m == nil {
		return errors.New("未配置 mail.inbox.server")
	}
	saved, err := m.check(a)
	if err != nil {
		a.logger.Error("检查邮箱失败: " + err.Error())
		return err
	}
	if saved {
		fmt.Fprintln(cmd.OutOrStdout(), a.cfg.DataFile)
	}
	return nil
}
