// Package transport implements the remote stores that the local cache is
// synchronized with.
//
// Every variant is selected by a Kind and configured by a typed record that
// is validated once, before any operation runs:
//
//	local   git-bigfile.local.path
//	sftp    git-bigfile.sftp.{hostname,username,path} [port,password,identityfile,knownhosts]
//	oci     git-bigfile.oci.repository [username,password,insecure]
//	bucket  git-bigfile.bucket.url
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/bigfile/internal/pointer"
)

// ErrNotFound is returned by Get when the remote store has no object for a hash.
var ErrNotFound = errors.New("transport: object not found")

// Transport handles remote object operations.
type Transport interface {
	// Exists reports whether the remote store holds h.
	Exists(ctx context.Context, h pointer.Hash) (bool, error)

	// Get downloads h into the local file dest.
	Get(ctx context.Context, h pointer.Hash, dest string) error

	// Put uploads the local file src as h.
	Put(ctx context.Context, src string, h pointer.Hash) error

	// List returns every hash currently in the remote store.
	List(ctx context.Context) (map[pointer.Hash]struct{}, error)

	// Kind identifies the variant.
	Kind() Kind

	// Close releases any connection held by the transport.
	Close() error
}

// Kind identifies a transport variant.
type Kind string

const (
	KindLocal  Kind = "local"
	KindSFTP   Kind = "sftp"
	KindOCI    Kind = "oci"
	KindBucket Kind = "bucket"
)

// Kinds lists every supported variant.
var Kinds = []Kind{KindLocal, KindSFTP, KindOCI, KindBucket}

var (
	mandatoryOptions = map[Kind][]string{
		KindLocal:  {"path"},
		KindSFTP:   {"hostname", "username", "path"},
		KindOCI:    {"repository"},
		KindBucket: {"url"},
	}
	optionalOptions = map[Kind][]string{
		KindSFTP: {"port", "password", "identityfile", "knownhosts"},
		KindOCI:  {"username", "password", "insecure"},
	}
)

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := mandatoryOptions[k]
	return k, ok
}

// MandatoryOptions returns the option names that must be set for k.
func MandatoryOptions(k Kind) []string {
	return mandatoryOptions[k]
}

// Options returns every option name understood by k, mandatory ones first.
func Options(k Kind) []string {
	return append(append([]string{}, mandatoryOptions[k]...), optionalOptions[k]...)
}

// OptionKey returns the persisted configuration key for an option.
func OptionKey(k Kind, option string) string {
	return fmt.Sprintf("git-bigfile.%s.%s", k, option)
}

// ConfigError reports an unusable transport configuration.
type ConfigError struct {
	Kind    string
	Reason  string
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing option(s) for %s transport: %s", e.Kind, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// Config selects one transport variant. Only the record matching Kind is used.
type Config struct {
	Kind   Kind
	Local  LocalConfig
	SFTP   SFTPConfig
	OCI    OCIConfig
	Bucket BucketConfig
}

// ParseConfig builds a validated Config from raw option values.
func ParseConfig(kind string, options map[string]string) (Config, error) {
	if strings.TrimSpace(kind) == "" {
		return Config{}, &ConfigError{Reason: "git-bigfile.transport is not set"}
	}
	k, ok := ParseKind(kind)
	if !ok {
		return Config{}, unknownKind(kind)
	}

	cfg := Config{Kind: k}
	switch k {
	case KindLocal:
		cfg.Local = LocalConfig{Path: options["path"]}
	case KindSFTP:
		cfg.SFTP = SFTPConfig{
			Hostname:     options["hostname"],
			Username:     options["username"],
			Path:         options["path"],
			Password:     options["password"],
			IdentityFile: options["identityfile"],
			KnownHosts:   options["knownhosts"],
		}
		if port := options["port"]; port != "" {
			n, err := strconv.Atoi(port)
			if err != nil || n <= 0 || n > 65535 {
				return Config{}, &ConfigError{Kind: string(k), Reason: fmt.Sprintf("invalid %s: %q", OptionKey(k, "port"), port)}
			}
			cfg.SFTP.Port = n
		}
	case KindOCI:
		cfg.OCI = OCIConfig{
			Repository: options["repository"],
			Username:   options["username"],
			Password:   options["password"],
		}
		if insecure := options["insecure"]; insecure != "" {
			b, err := strconv.ParseBool(insecure)
			if err != nil {
				return Config{}, &ConfigError{Kind: string(k), Reason: fmt.Sprintf("invalid %s: %q", OptionKey(k, "insecure"), insecure)}
			}
			cfg.OCI.Insecure = b
		}
	case KindBucket:
		cfg.Bucket = BucketConfig{URL: options["url"]}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected variant has every mandatory option.
func (c Config) Validate() error {
	var set map[string]string
	switch c.Kind {
	case KindLocal:
		set = map[string]string{"path": c.Local.Path}
	case KindSFTP:
		set = map[string]string{"hostname": c.SFTP.Hostname, "username": c.SFTP.Username, "path": c.SFTP.Path}
	case KindOCI:
		set = map[string]string{"repository": c.OCI.Repository}
	case KindBucket:
		set = map[string]string{"url": c.Bucket.URL}
	case "":
		return &ConfigError{Reason: "git-bigfile.transport is not set"}
	default:
		return unknownKind(string(c.Kind))
	}

	var missing []string
	for _, option := range mandatoryOptions[c.Kind] {
		if strings.TrimSpace(set[option]) == "" {
			missing = append(missing, OptionKey(c.Kind, option))
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Kind: string(c.Kind), Missing: missing}
	}
	return nil
}

// New creates the transport described by cfg.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("transport", string(cfg.Kind)))

	switch cfg.Kind {
	case KindLocal:
		return NewLocal(afero.NewOsFs(), cfg.Local), nil
	case KindSFTP:
		return NewSFTP(cfg.SFTP, log), nil
	case KindOCI:
		return NewOCI(cfg.OCI, log)
	case KindBucket:
		return OpenBucket(ctx, cfg.Bucket)
	default:
		return nil, unknownKind(string(cfg.Kind))
	}
}

func unknownKind(kind string) error {
	valid := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		valid = append(valid, string(k))
	}
	sort.Strings(valid)
	return &ConfigError{
		Kind:   kind,
		Reason: fmt.Sprintf("unknown transport: %s (valid transports: %s)", kind, strings.Join(valid, " ")),
	}
}

// validNames filters a remote listing down to object names.
func validNames(names []string) map[pointer.Hash]struct{} {
	out := make(map[pointer.Hash]struct{}, len(names))
	for _, n := range names {
		if pointer.Valid(n) {
			out[pointer.Hash(n)] = struct{}{}
		}
	}
	return out
}
