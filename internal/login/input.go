package login

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Source locates the serialized account list.
type Source struct {
	// EnvVar, when set and non-empty in the environment, holds the JSON list directly.
	EnvVar string
	// File is read when the environment override is absent.
	File string

	lookupEnv func(string) (string, bool)
}

// panelNum accepts both 6 and "6".
type panelNum int

func (p *panelNum) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("panelnum %s is not an integer", string(b))
	}
	*p = panelNum(n)
	return nil
}

func (p *panelNum) UnmarshalYAML(node *yaml.Node) error {
	n, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("panelnum %q is not an integer", node.Value)
	}
	*p = panelNum(n)
	return nil
}

type accountRecord struct {
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	PanelNum panelNum `json:"panelnum" yaml:"panelnum"`
}

// LoadAccounts reads and validates the account list. Every failure wraps
// ErrCredentialSource.
func LoadAccounts(src Source) ([]Account, error) {
	lookup := src.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if src.EnvVar != "" {
		if raw, ok := lookup(src.EnvVar); ok && strings.TrimSpace(raw) != "" {
			Infof("reading accounts from $%s", src.EnvVar)
			accounts, err := parseAccounts([]byte(raw), false)
			if err != nil {
				return nil, fmt.Errorf("%w: $%s: %v", ErrCredentialSource, src.EnvVar, err)
			}
			return accounts, nil
		}
	}

	Infof("reading accounts file %s", src.File)
	data, err := os.ReadFile(src.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialSource, err)
	}
	ext := strings.ToLower(filepath.Ext(src.File))
	accounts, err := parseAccounts(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCredentialSource, src.File, err)
	}
	return accounts, nil
}

func parseAccounts(data []byte, isYAML bool) ([]Account, error) {
	var records []accountRecord
	if isYAML {
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	}

	accounts := make([]Account, 0, len(records))
	for i, rec := range records {
		switch {
		case strings.TrimSpace(rec.Username) == "":
			return nil, fmt.Errorf("account %d: username is required", i+1)
		case strings.ContainsFunc(rec.Username, unicode.IsControl):
			return nil, fmt.Errorf("account %d: username %q contains control characters", i+1, rec.Username)
		case rec.Password == "":
			return nil, fmt.Errorf("account %d (%s): password is required", i+1, rec.Username)
		case rec.PanelNum <= 0:
			return nil, fmt.Errorf("account %d (%s): panelnum must be a positive integer", i+1, rec.Username)
		}
		accounts = append(accounts, Account{
			Username:    rec.Username,
			Password:    rec.Password,
			PanelNumber: int(rec.PanelNum),
		})
	}
	Infof("parsed %d accounts", len(accounts))
	return accounts, nil
}
