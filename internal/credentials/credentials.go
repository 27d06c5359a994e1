package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "beep-protect"
	keyAPIKey   = "stere_api_key"
)

var ErrNotFound = errors.New("credentials: not found")

// StoreAPIKey keeps the insurance API key for environment env in the OS
// keyring.
func StoreAPIKey(env, key string) error {
	if err := keyring.Set(serviceName, env+":"+keyAPIKey, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

func LoadAPIKey(env string) (string, error) {
	val, err := keyring.Get(serviceName, env+":"+keyAPIKey)
	if err != nil {
		return "", ErrNotFound
	}
	return val, nil
}

func DeleteAPIKey(env string) {
	_ = keyring.Delete(serviceName, env+":"+keyAPIKey)
}

func StoreAppSecret(key string, value string) error {
	return keyring.Set(serviceName, "app:"+key, value)
}

func LoadAppSecret(key string) (string, error) {
	val, err := keyring.Get(serviceName, "app:"+key)
	if err != nil {
		return "", ErrNotFound
	}
	return val, nil
}

func DeleteAppSecret(key string) {
	_ = keyring.Delete(serviceName, "app:"+key)
}
