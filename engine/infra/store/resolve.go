package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/procuremind/procuremind/pkg/logger"
)

// EnvDatabaseURL is the environment variable consulted by EnvStrategy.
const EnvDatabaseURL = "DATABASE_URL"

var (
	// ErrSkipStrategy tells the chain that a strategy has nothing to offer.
	ErrSkipStrategy = errors.New("store: strategy not applicable")
	// ErrUnresolved is returned when no strategy in a chain succeeded.
	ErrUnresolved = errors.New("store: no strategy resolved")
)

// Strategy is one named attempt in an ordered resolution chain.
type Strategy[T any] struct {
	Name    string
	Resolve func(ctx context.Context) (T, error)
}

// Resolve tries strategies in order and returns the first value produced,
// together with the winning strategy's name. Failing or panicking strategies
// are logged and the chain moves on; ErrSkipStrategy moves on silently.
func Resolve[T any](ctx context.Context, strategies ...Strategy[T]) (T, string, error) {
	log := logger.FromContext(ctx)
	var failures []error
	for _, s := range strategies {
		value, err := attempt(ctx, s)
		switch {
		case err == nil:
			return value, s.Name, nil
		case errors.Is(err, ErrSkipStrategy):
			log.Debug("Resolution strategy not applicable", "strategy", s.Name)
		default:
			log.Warn("Resolution strategy failed", "strategy", s.Name, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	var zero T
	if len(failures) > 0 {
		return zero, "", fmt.Errorf("%w: %w", ErrUnresolved, errors.Join(failures...))
	}
	return zero, "", ErrUnresolved
}

func attempt[T any](ctx context.Context, s Strategy[T]) (value T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if s.Resolve == nil {
		return value, ErrSkipStrategy
	}
	return s.Resolve(ctx)
}

// StaticStrategy yields url when it is non-empty.
func StaticStrategy(name, url string) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Resolve: func(context.Context) (string, error) {
			if url == "" {
				return "", ErrSkipStrategy
			}
			return url, nil
		},
	}
}

// EnvStrategy reads the connection URL from DATABASE_URL.
func EnvStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "environment",
		Resolve: func(context.Context) (string, error) {
			if v, ok := os.LookupEnv(EnvDatabaseURL); ok && v != "" {
				return v, nil
			}
			return "", ErrSkipStrategy
		},
	}
}

// FallbackStrategy always yields the local development database URL.
func FallbackStrategy(url string) Strategy[string] {
	return StaticStrategy("local-fallback", url)
}

// ResolveConnection runs a URL strategy chain and parses the winner. The
// strategy that won is logged and recorded on the Target. There is no retry.
func ResolveConnection(ctx context.Context, strategies ...Strategy[string]) (Target, error) {
	raw, source, err := Resolve(ctx, strategies...)
	if err != nil {
		return Target{}, fmt.Errorf("resolve database connection: %w", err)
	}
	target, err := ParseURL(raw)
	if err != nil {
		return Target{}, fmt.Errorf("resolve database connection from %s: %w", source, err)
	}
	target.Source = source
	logger.FromContext(ctx).Info(
		"Database connection resolved",
		"source", source,
		"driver", target.Driver,
		"url", target.Redacted(),
	)
	return target, nil
}
