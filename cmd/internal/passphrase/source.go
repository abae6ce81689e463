package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrUnavailable is returned when no passphrase is configured and stdin is
// not a terminal to prompt on.
var ErrUnavailable = errors.New("keystore passphrase unavailable")

// Source hands the vaultix CLI the passphrase for its keystores. The
// environment variable wins over the prompt, and whichever answers first is
// reused for every keystore opened by the same command.
type Source struct {
	envVar string
	lookup func(string) (string, bool)
	prompt func() (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource returns a Source reading envVar, falling back to a no-echo
// prompt on stdin.
func NewSource(envVar string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		lookup: os.LookupEnv,
		prompt: promptTerminal,
	}
}

// Get resolves the passphrase once. Blank passphrases are errors.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if value, ok := s.fromEnv(); ok {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s is set but empty", s.envVar)
		}
		return value, nil
	}
	value, err := s.prompt()
	if errors.Is(err, ErrUnavailable) && s.envVar != "" {
		return "", fmt.Errorf("%w: export %s or run the command in a terminal", err, s.envVar)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New("keystore passphrase is blank")
	}
	return value, nil
}

func (s *Source) fromEnv() (string, bool) {
	if s.envVar == "" || s.lookup == nil {
		return "", false
	}
	return s.lookup(s.envVar)
}

func promptTerminal() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrUnavailable
	}
	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
