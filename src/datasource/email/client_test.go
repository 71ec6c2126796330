package email

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const sampleCSV = "year,carrier_name,airport_name,arr_flights\n2020,Delta Air Lines Inc.,\"Atlanta, GA: Hartsfield-Jackson\",100\n"

// gbkWord 按 GBK 编码成 =?gbk?B?...?= 格式
func gbkWord(t *testing.T, s string) string {
	t.Helper()
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(s)
	require.NoError(t, err)
	return "=?gbk?B?" + base64.StdEncoding.EncodeToString([]byte(encoded)) + "?="
}

// rawMessage 带一个正文和若干附件的 multipart 邮件
func rawMessage(subject string, date string, attachments map[string]string) string {
	lines := []string{
		"From: Ops <ops@example.com>",
		"To: analyst@example.com",
		"Subject: " + subject,
		"Date: " + date,
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"monthly extract attached",
	}
	for name, content := range attachments {
		lines = append(lines,
			"--BOUNDARY",
			"Content-Type: application/octet-stream",
			`Content-Disposition: attachment; filename="`+name+`"`,
			"Content-Transfer-Encoding: base64",
			"",
			base64.StdEncoding.EncodeToString([]byte(content)),
		)
	}
	lines = append(lines, "--BOUNDARY--", "")
	return strings.Join(lines, "\r\n")
}

func TestParseMessage(t *testing.T) {
	subject := gbkWord(t, "航班准点率 On-Time Performance")
	raw := rawMessage(subject, "Mon, 19 Oct 2026 08:00:00 +0000", map[string]string{"delays.csv": sampleCSV})

	email, err := ParseMessage(strings.NewReader(raw), 42)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), email.UID)
	assert.Equal(t, "航班准点率 On-Time Performance", email.Subject)
	assert.Equal(t, "Ops <ops@example.com>", email.From)
	assert.True(t, email.Date.Equal(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)))

	require.Len(t, email.Attachments, 1, "正文不算附件")
	assert.Equal(t, "delays.csv", email.Attachments[0].Filename)
	assert.Equal(t, sampleCSV, string(email.Attachments[0].Content))
}

func TestParseMessageWithoutAttachments(t *testing.T) {
	raw := rawMessage("hello", "Mon, 19 Oct 2026 08:00:00 +0000", nil)

	email, err := ParseMessage(strings.NewReader(raw), 1)
	require.NoError(t, err)
	assert.Equal(t, "hello", email.Subject)
	assert.Empty(t, email.Attachments)
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "延误", decodeHeader(gbkWord(t, "延误")))
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
	assert.Equal(t, "Café", decodeHeader("=?utf-8?Q?Caf=C3=A9?="))
	// 无法解码时原样返回
	assert.Equal(t, "=?utf-8?X?bad?=", decodeHeader("=?utf-8?X?bad?="))
}

func TestFetchRequiresConnection(t *testing.T) {
	c := NewEmailClient("imap.example.com:993", "user", "pass")
	_, err := c.FetchUnreadEmails()
	assert.ErrorIs(t, err, ErrNotConnected)
	c.Disconnect()
}
