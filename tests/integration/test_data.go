//go:build integration

package integration

import (
	"fmt"
	"time"
)

const TestPassword = "TestPassword123!"

// PrincipalSeed describes a principal to insert before a test
type PrincipalSeed struct {
	Username string
	QQ       string
	Password string
	Inactive bool
}

// TestPrincipal generates a unique username and QQ number using the clock
func TestPrincipal(suffix string) PrincipalSeed {
	ts := time.Now().UnixNano()
	return PrincipalSeed{
		Username: fmt.Sprintf("player-%d-%s", ts, suffix),
		QQ:       fmt.Sprintf("%d", 10000+ts%1_000_000_000),
		Password: TestPassword,
	}
}
