package hooks

import (
	"context"

	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/util"
)

// Session keys written by the built-in hooks.
const (
	LastLoginIPKey = "last_login_ip"
	UserSubKey     = "user_sub"
)

// Names of the built-in hooks.
const (
	LogAttempt       = "log_attempt"
	RecordLogin      = "record_login"
	ClearLoginRecord = "clear_login_record"
	Webhook          = "webhook"
)

// RegisterBuiltins adds the built-in hooks to c.
func RegisterBuiltins(c *Catalog) {
	c.Register(LogAttempt, logAttempt)
	c.Register(RecordLogin, recordLogin)
	c.Register(ClearLoginRecord, clearLoginRecord)
}

func logAttempt(_ context.Context, call Call) error {
	logger.Info("Login attempt",
		"client_ip", clientIP(call),
		"email", stringField(call.Payload, "email"),
	)
	return nil
}

func recordLogin(_ context.Context, call Call) error {
	ip := clientIP(call)
	logger.Info("Successful login",
		"client_ip", ip,
		"email", stringField(call.Payload, "email"),
	)
	if call.Session == nil {
		return nil
	}
	call.Session.Set(LastLoginIPKey, ip)
	if sub := stringField(call.Payload, "sub"); sub != "" {
		call.Session.Set(UserSubKey, sub)
	}
	return nil
}

func clearLoginRecord(_ context.Context, call Call) error {
	var sub string
	if call.Session != nil {
		sub, _ = call.Session.Get(UserSubKey)
		call.Session.Delete(LastLoginIPKey)
		call.Session.Delete(UserSubKey)
	}
	logger.Info("User logout", "client_ip", clientIP(call), "sub", sub)
	return nil
}

func clientIP(call Call) string {
	if call.Request == nil {
		return ""
	}
	return util.ClientIP(call.Request)
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
