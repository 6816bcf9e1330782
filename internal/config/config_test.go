package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/bigfile/internal/transport"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]string
		want     transport.Config
		wantErr  string
	}{
		{
			name:     "unset",
			settings: map[string]string{"user.name": "someone"},
			wantErr:  "git-bigfile.transport is not set",
		},
		{
			name:     "unknown",
			settings: map[string]string{"git-bigfile.transport": "rsync"},
			wantErr:  "unknown transport: rsync (valid transports: bucket local oci sftp)",
		},
		{
			name: "local",
			settings: map[string]string{
				"git-bigfile.transport":  "local",
				"git-bigfile.local.path": "/mnt/share/bigfiles",
				"git-bigfile.sftp.path":  "/ignored",
			},
			want: transport.Config{Kind: transport.KindLocal, Local: transport.LocalConfig{Path: "/mnt/share/bigfiles"}},
		},
		{
			name: "sftp missing options",
			settings: map[string]string{
				"git-bigfile.transport":     "sftp",
				"git-bigfile.sftp.username": "git",
			},
			wantErr: "missing option(s) for sftp transport: git-bigfile.sftp.hostname, git-bigfile.sftp.path",
		},
		{
			name: "keys are case insensitive",
			settings: map[string]string{
				"git-bigfile.transport":         "sftp",
				"git-bigfile.sftp.hostname":     "files.example.com",
				"git-bigfile.sftp.username":     "git",
				"git-bigfile.sftp.path":         "/srv/bigfiles",
				"git-bigfile.sftp.IdentityFile": "~/.ssh/deploy",
			},
			want: transport.Config{Kind: transport.KindSFTP, SFTP: transport.SFTPConfig{
				Hostname:     "files.example.com",
				Username:     "git",
				Path:         "/srv/bigfiles",
				IdentityFile: "~/.ssh/deploy",
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tt.settings)
			if tt.wantErr != "" {
				var cerr *transport.ConfigError
				require.ErrorAs(t, err, &cerr)
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEnvironmentOverrides(t *testing.T) {
	t.Setenv("GIT_BIGFILE_TRANSPORT", "bucket")
	t.Setenv("GIT_BIGFILE_BUCKET_URL", "mem://")

	got, err := Resolve(map[string]string{
		"git-bigfile.transport":  "local",
		"git-bigfile.local.path": "/mnt/share/bigfiles",
	})
	require.NoError(t, err)
	assert.Equal(t, transport.Config{Kind: transport.KindBucket, Bucket: transport.BucketConfig{URL: "mem://"}}, got)
}
