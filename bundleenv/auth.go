package bundleenv

import (
	"context"
	"fmt"
	"time"
)

// Credential is one secret handed to a registry or storage client.
// A zero ExpiresAt means the credential does not expire.
type Credential struct {
	Username  string
	Secret    string
	ExpiresAt time.Time
}

// Expired reports whether the credential has passed its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// AuthProvider resolves credentials for the registries and storage
// accounts an environment points at. Implementations live outside this
// package: cloud credential helpers, keychains, CI secret stores.
type AuthProvider interface {
	// RegistryCredential returns the credential for pushing to and
	// pulling from the registry at host.
	RegistryCredential(ctx context.Context, host string) (Credential, error)

	// StorageCredential returns the credential for the given storage
	// account and container.
	StorageCredential(ctx context.Context, account, container string) (Credential, error)
}

// StaticAuthProvider serves the credentials embedded in an Environment
// document. It is the fallback when no external credential helper is
// configured; CI setups usually inject a real provider instead.
type StaticAuthProvider struct {
	env Environment
}

// NewStaticAuthProvider builds a provider over one environment.
func NewStaticAuthProvider(env Environment) *StaticAuthProvider {
	return &StaticAuthProvider{env: env}
}

// RegistryCredential returns the environment's embedded registry
// credential. Environments with RequiresAuth and no embedded credential
// fail: the operator must configure an external provider.
func (p *StaticAuthProvider) RegistryCredential(_ context.Context, host string) (Credential, error) {
	if host != p.env.Registry.LoginServer {
		return Credential{}, fmt.Errorf("no credential for registry host %q (environment %s points at %q)",
			host, p.env.Name, p.env.Registry.LoginServer)
	}
	if !p.env.Registry.RequiresAuth {
		return Credential{}, nil
	}
	if p.env.Registry.Username == "" {
		return Credential{}, fmt.Errorf("registry %q requires auth but environment %s embeds no credential",
			host, p.env.Name)
	}
	return Credential{
		Username: p.env.Registry.Username,
		Secret:   p.env.Registry.Password,
	}, nil
}

// StorageCredential returns the environment's embedded storage
// credential.
func (p *StaticAuthProvider) StorageCredential(_ context.Context, account, container string) (Credential, error) {
	if container != p.env.Storage.Container {
		return Credential{}, fmt.Errorf("no credential for container %q (environment %s points at %q)",
			container, p.env.Name, p.env.Storage.Container)
	}
	if p.env.Storage.ConnectionString != "" {
		return Credential{Secret: p.env.Storage.ConnectionString}, nil
	}
	if p.env.Storage.AccessKey == "" {
		return Credential{}, fmt.Errorf("environment %s embeds no storage credential for %s/%s",
			p.env.Name, account, container)
	}
	return Credential{
		Username: p.env.Storage.AccessKey,
		Secret:   p.env.Storage.SecretKey,
	}, nil
}
