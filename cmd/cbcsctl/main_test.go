package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"acadcore/cbcs/config"
	"acadcore/cbcs/pkg/jwt"
)

const testSecret = "cbcsctl-test-secret-0123"

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "auth:\n  jwt_secret: \"" + testSecret + "\"\n  issuer: acadcore\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestTokenCmd_MintsVerifiableToken(t *testing.T) {
	path := writeConfig(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "token", "--user", "student-42", "--role", "student"})

	if err := root.Execute(); err != nil {
		t.Fatalf("执行 token 命令失败: %v", err)
	}

	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: testSecret, Issuer: "acadcore", AccessTokenTTL: time.Minute})
	claims, err := mgr.ParseToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("签发的 Token 无法校验: %v", err)
	}
	if claims.UserID != "student-42" || claims.Role != "student" {
		t.Errorf("期望 student-42/student，实际 %s/%s", claims.UserID, claims.Role)
	}
}

func TestTokenCmd_RejectsUnknownRole(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t), "token", "--user", "u1", "--role", "leader"})

	if err := root.Execute(); err == nil {
		t.Error("期望未知角色报错，实际成功")
	}
}

func TestCycleCommands_RequireCycleFlag(t *testing.T) {
	for _, name := range []string{"status", "finalize"} {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{name})
		if err := root.Execute(); err == nil {
			t.Errorf("%s: 期望缺少 --cycle 时报错", name)
		}
	}
}
