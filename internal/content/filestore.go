package content

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Per-tenant file names under <root>/<chat_id>/.
const (
	fileConfig        = "config.json"
	fileProfanity     = "profanity.txt"
	filePing          = "ping.txt"
	fileDelete        = "delete.txt"
	fileHello         = "hello.txt"
	fileHelloSpoilers = "hello_spoilers.txt"
	fileGoodbye       = "goodbye.txt"
	fileRolePlay      = "roleplay.json"
	dirHelpers        = "helpers"
)

// FileStore reads tenant content from one directory per tenant, named
// by the tenant's primary chat id.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the content root directory.
func (s *FileStore) Root() string { return s.root }

// TenantIDs lists tenant directories under the content root. Entries
// that are not directories or not numeric are ignored.
func (s *FileStore) TenantIDs() ([]int64, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read content root: %w", err)
	}
	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			slog.Debug("skipping non-tenant directory", "name", e.Name())
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *FileStore) tenantPath(tenantID int64, name string) string {
	return filepath.Join(s.root, strconv.FormatInt(tenantID, 10), name)
}

// Lexicons loads the three watchlist files. A missing file yields an
// empty list, not an error.
func (s *FileStore) Lexicons(tenantID int64) (Lexicons, error) {
	var lex Lexicons
	var err error
	if lex.Profanity, err = s.readLines(tenantID, fileProfanity); err != nil {
		return Lexicons{}, err
	}
	if lex.Ping, err = s.readLines(tenantID, filePing); err != nil {
		return Lexicons{}, err
	}
	if lex.Deletion, err = s.readLines(tenantID, fileDelete); err != nil {
		return Lexicons{}, err
	}
	return lex, nil
}

// Messages loads greeting and farewell content.
func (s *FileStore) Messages(tenantID int64) (Messages, error) {
	hello, err := s.readText(tenantID, fileHello)
	if err != nil {
		return Messages{}, err
	}
	spoilers, err := s.readText(tenantID, fileHelloSpoilers)
	if err != nil {
		return Messages{}, err
	}
	goodbyes, err := s.readRawLines(tenantID, fileGoodbye)
	if err != nil {
		return Messages{}, err
	}
	return Messages{Hello: hello, HelloSpoilers: spoilers, Goodbyes: goodbyes}, nil
}

// Helpers loads every helper file under <tenant>/helpers/. A file that
// fails to parse is skipped with a warning; loading continues for the
// remaining files.
func (s *FileStore) Helpers(tenantID int64) ([]Helper, error) {
	dir := s.tenantPath(tenantID, dirHelpers)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read helpers dir: %w", err)
	}
	var helpers []Helper
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("helper file unreadable, skipped", "tenant", tenantID, "file", e.Name(), "error", err)
			continue
		}
		var h Helper
		if err := json5.Unmarshal(data, &h); err != nil {
			slog.Warn("helper file malformed, skipped", "tenant", tenantID, "file", e.Name(), "error", err)
			continue
		}
		if h.Command == "" {
			slog.Warn("helper file has no command, skipped", "tenant", tenantID, "file", e.Name())
			continue
		}
		helpers = append(helpers, h)
	}
	return helpers, nil
}

// RolePlay loads the verb → reply-template table. Missing file yields
// an empty table.
func (s *FileStore) RolePlay(tenantID int64) (map[string]string, error) {
	data, err := os.ReadFile(s.tenantPath(tenantID, fileRolePlay))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roleplay: %w", err)
	}
	table := map[string]string{}
	if err := json5.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse roleplay: %w", err)
	}
	return table, nil
}

// TenantConfig loads the tenant's config.json.
func (s *FileStore) TenantConfig(tenantID int64) (TenantConfig, error) {
	data, err := os.ReadFile(s.tenantPath(tenantID, fileConfig))
	if err != nil {
		return TenantConfig{}, fmt.Errorf("read tenant config: %w", err)
	}
	var cfg TenantConfig
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return TenantConfig{}, fmt.Errorf("parse tenant config: %w", err)
	}
	return cfg, nil
}

// WriteTenantConfig rewrites the tenant config in full, via a temp file
// and rename so readers never observe a partial write.
func (s *FileStore) WriteTenantConfig(tenantID int64, cfg TenantConfig) error {
	path := s.tenantPath(tenantID, fileConfig)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tenant config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write tenant config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace tenant config: %w", err)
	}
	return nil
}

// readLines reads a newline-delimited list file, trimming whitespace,
// lower-casing entries and dropping blanks. Missing file is fine.
func (s *FileStore) readLines(tenantID int64, name string) ([]string, error) {
	data, err := os.ReadFile(s.tenantPath(tenantID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// readRawLines is readLines without the lower-casing, for
// user-visible content like farewells.
func (s *FileStore) readRawLines(tenantID int64, name string) ([]string, error) {
	data, err := os.ReadFile(s.tenantPath(tenantID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// readText reads a whole text file, trimming trailing whitespace.
func (s *FileStore) readText(tenantID int64, name string) (string, error) {
	data, err := os.ReadFile(s.tenantPath(tenantID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}
