// Package resource resolves and retrieves the URLs named by manifests.
//
// Resolvers turn a (manifest, url) pair into an absolute URL; the first
// resolver that claims a pair wins, with relative-reference resolution as the
// fallback. Retrievers fetch the content behind an absolute URL and are keyed
// by scheme. Ports contribute both through the Port Manager's resource
// request.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

var (
	ErrRetrieverExists = errors.New("retriever already registered")
	ErrNoRetriever     = errors.New("no retriever for scheme")
	ErrInvalidURL      = errors.New("invalid resource url")
	ErrNotFound        = errors.New("resource not found")
	ErrRetrieveFailed  = errors.New("retrieve failed")
)

// Resolver resolves ref relative to manifest. It reports false when it does
// not handle the pair.
type Resolver func(ctx context.Context, manifest, ref string) (string, bool, error)

// Retriever fetches the content at an absolute URL.
type Retriever func(ctx context.Context, url string) (string, error)

// Registry holds the resolvers and retrievers of one context.
type Registry struct {
	mu         sync.RWMutex
	resolvers  []Resolver
	retrievers map[string]Retriever
}

// New returns a Registry with no resolvers and no retrievers.
func New() *Registry {
	return &Registry{retrievers: make(map[string]Retriever)}
}

// NewWithHTTP returns a Registry that retrieves http and https URLs with
// client. A nil client uses http.DefaultClient.
func NewWithHTTP(client *http.Client) *Registry {
	r := New()
	retriever := HTTPRetriever(client)
	r.retrievers["http"] = retriever
	r.retrievers["https"] = retriever
	return r
}

func (r *Registry) AddResolver(resolver Resolver) {
	if resolver == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers = append(r.resolvers, resolver)
}

// AddRetriever registers retriever for scheme. An existing retriever is never
// overridden.
func (r *Registry) AddRetriever(scheme string, retriever Retriever) error {
	if retriever == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.retrievers[scheme]; exists {
		return fmt.Errorf("%w: %s", ErrRetrieverExists, scheme)
	}
	r.retrievers[scheme] = retriever
	return nil
}

// Resolve returns the absolute URL for ref as seen from manifest.
func (r *Registry) Resolve(ctx context.Context, manifest, ref string) (string, error) {
	r.mu.RLock()
	resolvers := make([]Resolver, len(r.resolvers))
	copy(resolvers, r.resolvers)
	r.mu.RUnlock()

	for _, resolver := range resolvers {
		resolved, ok, err := resolver(ctx, manifest, ref)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		if ok {
			return resolved, nil
		}
	}

	return resolveReference(manifest, ref)
}

// Retrieve fetches the content at an absolute URL using the retriever
// registered for its scheme.
func (r *Registry) Retrieve(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	r.mu.RLock()
	retriever, exists := r.retrievers[u.Scheme]
	r.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNoRetriever, u.Scheme)
	}
	return retriever(ctx, rawURL)
}

func resolveReference(manifest, ref string) (string, error) {
	target, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, ref)
	}
	if target.IsAbs() || manifest == "" {
		return target.String(), nil
	}

	base, err := url.Parse(manifest)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, manifest)
	}
	return base.ResolveReference(target).String(), nil
}

// HTTPRetriever fetches URLs with client.
func HTTPRetriever(client *http.Client) Retriever {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, rawURL string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("failed to retrieve %s: status %d", rawURL, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", rawURL, err)
		}
		return string(body), nil
	}
}
