package topo

import (
	"context"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
)

const appName = "pcmm"

// ConnectionDescriptor is everything needed to reach one endpoint.
// Username and Password are resolved secrets and must never be logged.
type ConnectionDescriptor struct {
	Host     string
	Database string
	Username string
	Password string
	// AuthSource is the database the credentials are defined in.
	AuthSource string
}

// HasCredentials reports whether both halves of the credential pair are set.
func (d ConnectionDescriptor) HasCredentials() bool {
	return strings.TrimSpace(d.Username) != "" && strings.TrimSpace(d.Password) != ""
}

// URI builds the connection string. Credentials are embedded only when both
// the username and the password are present. Host may be a bare host list or
// a full mongodb:// / mongodb+srv:// URI.
func (d ConnectionDescriptor) URI() (string, error) {
	raw := d.Host
	if !strings.Contains(raw, "://") {
		raw = "mongodb://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse host")
	}

	if u.Host == "" {
		return "", errors.New("host is empty")
	}

	if d.HasCredentials() {
		u.User = url.UserPassword(d.Username, d.Password)

		if d.AuthSource != "" {
			q := u.Query()
			q.Set("authSource", d.AuthSource)
			u.RawQuery = q.Encode()
		}
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Redacted returns the connection target without credentials, for logs.
func (d ConnectionDescriptor) Redacted() string {
	raw := d.Host
	if !strings.Contains(raw, "://") {
		raw = "mongodb://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return d.Host
	}

	u.User = nil

	return u.Scheme + "://" + u.Host
}

// Connect creates a client for uri. It does not contact the server; use
// [Probe] to check that the deployment answers.
func Connect(_ context.Context, uri string, cfg *config.Config) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("invalid MongoDB URI")
	}

	opts := options.Client().ApplyURI(uri).
		SetAppName(appName).
		SetReadPreference(readpref.Primary())

	if cfg != nil && cfg.MongoDB.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.MongoDB.ConnectTimeout).
			SetServerSelectionTimeout(cfg.MongoDB.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	return client, nil
}
