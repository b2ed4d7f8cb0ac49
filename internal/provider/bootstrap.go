package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"provider_core/internal/models"
)

func lookupEnvDefault(key string) string {
	return os.Getenv(key)
}

// DetectProviders scans the environment for vendor API keys and
// idempotently creates a provider per configured vendor. The first
// detected provider becomes the default when none exists. Returns how
// many providers the scan created or confirmed.
func (s *Service) DetectProviders(ctx context.Context) (int, error) {
	hasDefault := true
	if _, err := s.store.FindDefaultProvider(ctx); errors.Is(err, models.ErrProviderNotFound) {
		hasDefault = false
	} else if err != nil {
		return 0, err
	}

	detected := 0
	for _, providerType := range models.AllProviderTypes() {
		info, ok := models.TypeInfo(providerType)
		if !ok {
			continue
		}

		apiKey := s.lookupEnv(info.EnvKeyVar)
		if apiKey == "" {
			continue
		}

		spec := &models.ProviderSpec{
			Name:         fmt.Sprintf("%s-env", providerType),
			ProviderType: providerType,
			APIKey:       apiKey,
			BaseURL:      s.lookupEnv(info.EnvBaseURLVar),
			LLMModel:     s.lookupEnv(info.EnvModelVar),
			IsDefault:    !hasDefault,
		}

		created, err := s.CreateProvider(ctx, spec)
		if err != nil {
			s.log.WithError(err).WithField("provider_type", providerType).
				Warn("failed to auto-create provider from environment")
			continue
		}

		hasDefault = hasDefault || created.IsDefault
		detected++
		s.log.WithFields(map[string]any{
			"provider_name": created.Name,
			"provider_type": providerType,
		}).Info("provider detected from environment")
	}

	return detected, nil
}

// VerifyCredentials decrypts every stored key at startup. Any
// DecryptionError means the encryption key rotated underneath the stored
// rows; recovery clears everything and re-detects from the environment
// instead of failing boot.
func (s *Service) VerifyCredentials(ctx context.Context) error {
	all, err := s.store.ListAll(ctx, true)
	if err != nil {
		return err
	}

	for _, p := range all {
		_, err := s.store.DecryptAPIKey(p)
		if err == nil {
			continue
		}
		if !models.IsDecryptionError(err) {
			return err
		}

		s.log.WithField("provider_name", p.Name).
			Warn("stored credential no longer decrypts; clearing providers and re-detecting")

		if _, err := s.ClearAllProviders(ctx); err != nil {
			return fmt.Errorf("failed to clear providers after decryption failure: %w", err)
		}
		if _, err := s.DetectProviders(ctx); err != nil {
			return fmt.Errorf("failed to re-detect providers after clear: %w", err)
		}
		return nil
	}

	return nil
}
