package datapush

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/jordan-wright/email"
)

// DefaultSMTPPort 服务器地址不带端口时使用(SSL)
const DefaultSMTPPort = "465"

// sendFunc 实际发送，测试中替换
type sendFunc func(addr string, auth smtp.Auth, cfg *tls.Config, e *email.Email) error

// MailPusher 把导出结果作为附件发给收件人
type MailPusher struct {
	Server   string
	From     string
	Password string
	To       []string
	Subject  string // 为空时使用结果标题

	send sendFunc
}

func NewMailPusher(server, from, password string, to []string, subject string) *MailPusher {
	return &MailPusher{
		Server:   server,
		From:     from,
		Password: password,
		To:       to,
		Subject:  subject,
	}
}

// Enabled 配置了服务器和收件人
func (p *MailPusher) Enabled() bool {
	return p != nil && p.Server != "" && len(p.To) > 0
}

// Compose 正文为饼图汇总，附件为工作簿和已生成的图表
func (p *MailPusher) Compose(res *processor.Result, art *Artifact) (*email.Email, error) {
	if res == nil || art == nil {
		return nil, errors.New("没有可发送的导出结果")
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("Flight Delays <%s>", p.From)
	e.To = p.To
	e.Subject = res.Title()
	if p.Subject != "" {
		e.Subject = p.Subject + " - " + res.Title()
	}
	e.Text = []byte(ReportText(res, art))

	for _, path := range []string{art.Workbook, art.Scatter, art.Pie} {
		if path == "" {
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败 %s: %w", path, err)
		}
	}
	return e, nil
}

// Push 通过 SMTP(显式TLS) 发送
func (p *MailPusher) Push(res *processor.Result, art *Artifact) error {
	if !p.Enabled() {
		return errors.New("未配置邮件服务器或收件人")
	}
	e, err := p.Compose(res, art)
	if err != nil {
		return err
	}

	addr := smtpAddr(p.Server)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("邮件服务器地址无效 %q: %w", p.Server, err)
	}

	send := p.send
	if send == nil {
		send = func(addr string, auth smtp.Auth, cfg *tls.Config, e *email.Email) error {
			return e.SendWithTLS(addr, auth, cfg)
		}
	}
	if err := send(addr, smtp.PlainAuth("", p.From, p.Password, host), &tls.Config{ServerName: host}, e); err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}

// smtpAddr 确保服务器地址包含端口
func smtpAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, DefaultSMTPPort)
}

// ReportText 邮件正文
func ReportText(res *processor.Result, art *Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", res.Title())
	fmt.Fprintf(&b, "mode: %s\n", res.Mode)
	fmt.Fprintf(&b, "rows: %d\n", res.Rows.Nrow())
	if art != nil {
		fmt.Fprintf(&b, "run: %s\n", art.RunID)
	}
	b.WriteString("\n")

	pie := res.Pie
	if pie.Empty() {
		b.WriteString(pie.Message + "\n")
		return b.String()
	}
	fmt.Fprintf(&b, "total delays: %s\n", formatCount(pie.Total))
	for _, s := range pie.Slices {
		fmt.Fprintf(&b, "  %-22s %10s  %s\n", s.Label, formatCount(s.Count), utils.FormatPercent(s.Percent, 1))
	}
	return b.String()
}

func formatCount(v float64) string {
	return fmt.Sprintf("%.2f", utils.Round(v, 2))
}
