package exploit

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
)

func TestSQLMapDelegateUnavailable(t *testing.T) {
	d := NewSQLMapDelegate(&config.DelegateConfig{BinaryPath: ""}, zerolog.Nop())
	d.binaryPath = "" // force the not-found path even if sqlmap is installed

	_, err := d.Run(context.Background(), DelegateRequest{
		TargetURL: "http://shop.test/item?id=1",
		Parameter: "id",
	})
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestParseSQLMapOutput(t *testing.T) {
	output := `
[12:01:03] [INFO] fetching current database
current database: 'shopdb'
[12:01:09] [INFO] fetching current user
current user: 'app@localhost'
[12:01:15] [INFO] fetching banner
banner: '8.0.36'
`

	data := parseSQLMapOutput(output, []string{"database", "user", "version"})

	want := map[string]string{
		"database": "shopdb",
		"user":     "app@localhost",
		"version":  "8.0.36",
	}
	for field, value := range want {
		if data[field] != value {
			t.Errorf("%s = %q, want %q", field, data[field], value)
		}
	}
}

func TestParseSQLMapOutputPartial(t *testing.T) {
	output := "current database: 'shopdb'\n[WARNING] unable to retrieve the current user"

	data := parseSQLMapOutput(output, []string{"database", "user"})
	if data["database"] != "shopdb" {
		t.Errorf("database = %q", data["database"])
	}
	if _, ok := data["user"]; ok {
		t.Error("missing field must not appear in the result")
	}
}
