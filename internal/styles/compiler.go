package styles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

// ErrCompilerNotFound is returned when the sass binary cannot be located.
var ErrCompilerNotFound = errors.New("sass binary not found")

// Result is the output of a stylesheet compilation.
type Result struct {
	CSS       []byte
	SourceMap []byte
}

// Compiler expands a stylesheet language entry file into plain CSS.
type Compiler interface {
	Compile(ctx context.Context, entry string, loadPaths []string) (Result, error)
}

// SassCompiler invokes the Dart Sass binary.
type SassCompiler struct {
	// Binary defaults to "sass" resolved on PATH.
	Binary string
}

var sourceMappingComment = regexp.MustCompile(`(?m)\n?/\*# sourceMappingURL=[^*]*\*/\s*$`)

func (s *SassCompiler) Compile(ctx context.Context, entry string, loadPaths []string) (Result, error) {
	bin := s.Binary
	if bin == "" {
		bin = "sass"
	}
	binPath, err := exec.LookPath(bin)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrCompilerNotFound, err)
	}

	tmp, err := os.MkdirTemp("", "sitebuild-sass-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	out := filepath.Join(tmp, "main.css")
	args := []string{"--no-error-css", "--source-map-urls=absolute"}
	for _, lp := range loadPaths {
		args = append(args, "--load-path="+lp)
	}
	args = append(args, entry, out)

	// #nosec G204 -- binPath is from exec.LookPath and args are project paths
	cmd := exec.CommandContext(ctx, binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("Invoking sass", slog.String("binary", binPath), slog.String("entry", entry))

	if err := cmd.Run(); err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		if output != "" {
			return Result{}, fmt.Errorf("sass failed: %w: %s", err, output)
		}
		return Result{}, fmt.Errorf("sass failed: %w", err)
	}
	if errStr := stderr.String(); errStr != "" {
		slog.Warn("sass stderr", slog.String("error_output", errStr))
	}

	css, err := os.ReadFile(out)
	if err != nil {
		return Result{}, fmt.Errorf("read sass output: %w", err)
	}
	sourceMap, err := os.ReadFile(out + ".map")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("read sass source map: %w", err)
	}
	return Result{CSS: sourceMappingComment.ReplaceAll(css, nil), SourceMap: sourceMap}, nil
}
