// Package email, uygulama genelinde email gönderimi için soyutlama katmanı sağlar.
//
// EmailSender interface'i ile email gönderim detayları soyutlanır (Dependency
// Inversion). Şu anki implementasyon Resend API kullanır. İleride farklı bir
// sağlayıcıya geçmek için sadece yeni bir implementasyon yazıp constructor'da
// değiştirmek yeterli.
//
// Email tamamen opsiyoneldir: RESEND_API_KEY boşsa invite service'e nil
// sender geçilir ve davetler sadece API cevabında döner.
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/akinalp/koza/pkg/i18n"
)

// EmailSender, email gönderimi için interface.
// Service katmanı bu interface'e bağımlıdır, concrete Resend implementasyonuna değil.
type EmailSender interface {
	// SendInvite, alıcıya davet kodu ve sunucu adresi içeren email gönderir.
	// token plaintext davet kodudur; serverName/serverAddress gösterim içindir.
	// lang, e-posta metinlerinin dilidir — desteklenmeyen değerler
	// varsayılana düşer.
	SendInvite(ctx context.Context, toEmail, serverName, serverAddress, token, lang string) error
}

// resendSender, Resend API ile email gönderen EmailSender implementasyonu.
type resendSender struct {
	client    *resend.Client
	fromEmail string // Gönderici adresi (ör: noreply@koza.chat)
}

// NewResendSender, Resend API client'ı ile yeni bir EmailSender oluşturur.
//
// apiKey: Resend dashboard'dan alınan API key (re_xxxxxxxx formatında).
// fromEmail: Gönderici email adresi — Resend'de doğrulanmış domain altında olmalı.
func NewResendSender(apiKey, fromEmail string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
	}
}

// SendInvite, davet email'i gönderir.
//
// Metinler i18n kataloğundan gelir (invite.* anahtarları); davet kodu
// email'de plaintext bulunur. Redeem edildiğinde üretilen credential bu
// email'e hiç girmez — o sadece redeem cevabında döner.
func (s *resendSender) SendInvite(ctx context.Context, toEmail, serverName, serverAddress, token, lang string) error {
	loc := i18n.NewLocalizer(lang)
	subject := loc.TWithParams("invite.subject", map[string]string{"serverName": serverName})

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#1a1a2e;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#1a1a2e;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#16213e;border-radius:8px;padding:40px;">
          <tr>
            <td>
              <h1 style="color:#e2e8f0;font-size:24px;margin:0 0 8px 0;">koza</h1>
              <h2 style="color:#e2e8f0;font-size:18px;margin:0 0 24px 0;">%s</h2>
              <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 24px 0;">%s</p>
              <p style="color:#e2e8f0;font-size:15px;margin:0 0 8px 0;">%s</p>
              <p style="color:#6366f1;font-size:16px;font-family:monospace;margin:0 0 24px 0;word-break:break-all;">%s</p>
              <p style="color:#e2e8f0;font-size:15px;margin:0 0 8px 0;">%s</p>
              <p style="color:#6366f1;font-size:16px;font-family:monospace;margin:0 0 24px 0;word-break:break-all;">%s</p>
              <p style="color:#64748b;font-size:13px;line-height:1.6;margin:0;">%s</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		subject,
		loc.T("invite.intro"),
		loc.T("invite.addressLabel"),
		serverAddress,
		loc.T("invite.codeLabel"),
		token,
		loc.T("invite.footer"),
	)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("koza <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send invite email: %w", err)
	}

	return nil
}
