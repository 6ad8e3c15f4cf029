package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	t.Parallel()

	templates := Templates{PublicURL: "https://app.example.com/", AppName: "MelodyVerse"}

	t.Run("verification", func(t *testing.T) {
		msg := templates.Verification("ann@x.com", "tok123")
		require.Equal(t, KindVerification, msg.Kind)
		require.Equal(t, "ann@x.com", msg.To)
		require.Equal(t, "Verify Your Email - MelodyVerse", msg.Subject)
		require.Contains(t, msg.Body, "https://app.example.com/verify-email/tok123")
	})

	t.Run("password reset", func(t *testing.T) {
		msg := templates.PasswordReset("ann@x.com", "tok456")
		require.Equal(t, KindPasswordReset, msg.Kind)
		require.Equal(t, "Password Reset Request - MelodyVerse", msg.Subject)
		require.Contains(t, msg.Body, "https://app.example.com/reset-password/tok456")
	})
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sender.Send(context.Background(), Message{Kind: KindVerification, To: "ann@x.com", Subject: "hello"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "ann@x.com")
	require.Contains(t, buf.String(), "kind=verification")
}
