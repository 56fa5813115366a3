package mailman

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/command"
	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/types"
)

const (
	// DefaultBinDir is where Mailman 2.x installs its command line tools
	DefaultBinDir = "/var/lib/mailman/bin"

	// DefaultListsDir holds one directory per list with its config.pck
	DefaultListsDir = "/var/lib/mailman/lists"
)

var (
	quotedString  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"`)
	passwordEntry = regexp.MustCompile(`'password':\s*'([^']*)'`)
)

// CLI implements Primitives with the scripts in Mailman's bin directory
type CLI struct {
	BinDir   string
	ListsDir string

	runner command.Runner
	logger zerolog.Logger
}

// NewCLI creates Mailman primitives backed by runner
func NewCLI(binDir, listsDir string, runner command.Runner) *CLI {
	if binDir == "" {
		binDir = DefaultBinDir
	}
	if listsDir == "" {
		listsDir = DefaultListsDir
	}
	return &CLI{
		BinDir:   binDir,
		ListsDir: listsDir,
		runner:   runner,
		logger:   log.WithComponent("mailman"),
	}
}

// Available reports whether the Mailman tools are installed
func (c *CLI) Available() bool {
	return c.runner.LookPath(c.bin("list_members"))
}

func (c *CLI) bin(name string) string {
	return filepath.Join(c.BinDir, name)
}

// Exists reports whether a list with the given name is configured
func (c *CLI) Exists(ctx context.Context, name string) (bool, error) {
	out, err := c.runner.Run(ctx, nil, c.bin("list_lists"), "-b")
	if err != nil {
		return false, err
	}
	for _, l := range out.Lines() {
		if strings.EqualFold(l, name) {
			return true, nil
		}
	}
	return false, nil
}

// Create runs newlist. Mailman checks the name and owner itself.
func (c *CLI) Create(ctx context.Context, name string, opts CreateOptions) error {
	var args []string
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if opts.URLHost != "" {
		args = append(args, "-u", opts.URLHost)
	}
	if opts.EmailHost != "" {
		args = append(args, "-e", opts.EmailHost)
	}
	args = append(args, "-q", name, opts.Owner, opts.Password)

	c.logger.Info().Str("list", name).Str("owner", opts.Owner).Msg("creating list")
	if _, err := c.runner.Run(ctx, []byte("\n"), c.bin("newlist"), args...); err != nil {
		return fmt.Errorf("could not add list %s: %w", name, err)
	}
	return nil
}

// Remove runs rmlist, deleting the archives as well when archives is set
func (c *CLI) Remove(ctx context.Context, name string, archives bool) error {
	args := []string{name}
	if archives {
		args = []string{"-a", name}
	}

	c.logger.Info().Str("list", name).Bool("archives", archives).Msg("removing list")
	if _, err := c.runner.Run(ctx, nil, c.bin("rmlist"), args...); err != nil {
		return fmt.Errorf("removal of list %s failed: %w", name, err)
	}
	return nil
}

// ListMembers returns all subscribers, with display names when fullnames is set
func (c *CLI) ListMembers(ctx context.Context, name string, fullnames bool) ([]string, error) {
	args := []string{name}
	if fullnames {
		args = []string{"-f", name}
	}

	out, err := c.runner.Run(ctx, nil, c.bin("list_members"), args...)
	if err != nil {
		return nil, fmt.Errorf("could not list members of %s: %w", name, err)
	}
	return out.Lines(), nil
}

// IsMember reports whether address is subscribed to the list
func (c *CLI) IsMember(ctx context.Context, name, address string) (bool, error) {
	members, err := c.ListMembers(ctx, name, false)
	if err != nil {
		return false, err
	}

	address = NormalizeAddress(address)
	for _, m := range members {
		if strings.EqualFold(m, address) {
			return true, nil
		}
	}
	return false, nil
}

// AddMembers subscribes addresses as regular members
func (c *CLI) AddMembers(ctx context.Context, name string, addresses []string) error {
	stdin := []byte(strings.Join(addresses, "\n") + "\n")

	c.logger.Info().Str("list", name).Strs("members", addresses).Msg("adding members")
	if _, err := c.runner.Run(ctx, stdin, c.bin("add_members"), "-r", "-", name); err != nil {
		return fmt.Errorf("could not add members to list %s: %w", name, err)
	}
	return nil
}

// RemoveMembers unsubscribes addresses; display names are stripped first
func (c *CLI) RemoveMembers(ctx context.Context, name string, addresses []string) error {
	bare := make([]string, 0, len(addresses))
	for _, a := range addresses {
		bare = append(bare, NormalizeAddress(a))
	}
	stdin := []byte(strings.Join(bare, "\n") + "\n")

	c.logger.Info().Str("list", name).Strs("members", bare).Msg("removing members")
	if _, err := c.runner.Run(ctx, stdin, c.bin("remove_members"), "-f", "-", name); err != nil {
		return fmt.Errorf("removal of members on list %s failed: %w", name, err)
	}
	return nil
}

// GetOwners reads the owner attribute from config_list output
func (c *CLI) GetOwners(ctx context.Context, name string) ([]string, error) {
	out, err := c.runner.Run(ctx, nil, c.bin("config_list"), "-o", "-", name)
	if err != nil {
		return nil, fmt.Errorf("could not read configuration of %s: %w", name, err)
	}

	owners, ok := parseOwners(string(out.Stdout))
	if !ok {
		return nil, fmt.Errorf("%w: no owner attribute in configuration of %s", types.ErrPrimitive, name)
	}
	return owners, nil
}

// parseOwners extracts the owner list from config_list output. pprint may
// wrap a long list over several lines.
func parseOwners(config string) ([]string, bool) {
	var buf strings.Builder
	collecting := false
	for _, line := range strings.Split(config, "\n") {
		trimmed := strings.TrimSpace(line)
		if !collecting {
			key, value, found := strings.Cut(trimmed, "=")
			if !found || strings.TrimSpace(key) != "owner" {
				continue
			}
			collecting = true
			trimmed = strings.TrimSpace(value)
		}
		buf.WriteString(trimmed)
		if strings.HasSuffix(trimmed, "]") {
			break
		}
	}
	if !collecting {
		return nil, false
	}

	owners := []string{}
	for _, m := range quotedString.FindAllStringSubmatch(buf.String(), -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if v != "" {
			owners = append(owners, v)
		}
	}
	return owners, true
}

// SetOwners replaces the whole owner list through config_list -i, which holds
// the list lock while saving
func (c *CLI) SetOwners(ctx context.Context, name string, owners []string) error {
	f, err := os.CreateTemp("", "converge-owner-*.py")
	if err != nil {
		return fmt.Errorf("failed to create owner file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(formatOwners(owners)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write owner file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write owner file: %w", err)
	}

	c.logger.Info().Str("list", name).Strs("owners", owners).Msg("setting owners")
	if _, err := c.runner.Run(ctx, nil, c.bin("config_list"), "-i", f.Name(), name); err != nil {
		return fmt.Errorf("could not set owners of %s: %w", name, err)
	}
	return nil
}

func formatOwners(owners []string) string {
	quoted := make([]string, 0, len(owners))
	for _, o := range owners {
		quoted = append(quoted, pyQuote(o))
	}
	return fmt.Sprintf("owner = [%s]\n", strings.Join(quoted, ", "))
}

func pyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// SetPassword sets the list administrator password with change_pw
func (c *CLI) SetPassword(ctx context.Context, name, password string) error {
	if password == "" {
		return fmt.Errorf("%w: Empty passwords are not allowed", types.ErrValidation)
	}

	c.logger.Info().Str("list", name).Msg("changing list password")
	if _, err := c.runner.Run(ctx, nil, c.bin("change_pw"), "-q", "-l", name, "-p", password); err != nil {
		return fmt.Errorf("could not change password of %s: %w", name, err)
	}
	return nil
}

// CheckPassword authenticates password against the stored admin password.
// Mailman stores the SHA-1 hex digest, so the comparison is on digests.
func (c *CLI) CheckPassword(ctx context.Context, name, password string) (bool, error) {
	pck := filepath.Join(c.ListsDir, strings.ToLower(name), "config.pck")
	out, err := c.runner.Run(ctx, nil, c.bin("dumpdb"), pck)
	if err != nil {
		return false, fmt.Errorf("could not read configuration of %s: %w", name, err)
	}

	m := passwordEntry.FindSubmatch(out.Stdout)
	if m == nil {
		return false, fmt.Errorf("%w: no password in configuration of %s", types.ErrPrimitive, name)
	}

	sum := sha1.Sum([]byte(password))
	return string(m[1]) == hex.EncodeToString(sum[:]), nil
}
