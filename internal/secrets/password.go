package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the app's secrets in the OS keychain.
	KeyringService = "jhunt"

	TelegramAccount = "jhunt:telegram"

	EnvIMAPPassword  = "JHUNT_IMAP_PASSWORD"
	EnvTelegramToken = "JHUNT_TELEGRAM_TOKEN"
)

var ErrNotFound = errors.New("secret not found")

// IMAPKeyringAccount names the keychain entry for one mailbox.
func IMAPKeyringAccount(username, host string) string {
	return fmt.Sprintf("jhunt:imap:%s@%s", strings.TrimSpace(username), strings.TrimSpace(host))
}

// IMAPPassword looks in the keyring first, then in JHUNT_IMAP_PASSWORD.
func IMAPPassword(account string) (string, error) {
	return lookup(account, EnvIMAPPassword)
}

func SetIMAPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteIMAPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// TelegramToken looks in the keyring first, then in JHUNT_TELEGRAM_TOKEN.
func TelegramToken() (string, error) {
	return lookup(TelegramAccount, EnvTelegramToken)
}

func lookup(account, env string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set keyring account %q or %s", ErrNotFound, account, env)
}
