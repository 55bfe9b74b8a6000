package internal

import (
	"fmt"
	"io"
	"sort"

	"github.com/starford/plantbutler/internal/prefs"
	"github.com/starford/plantbutler/internal/secrets"
)

// keyringUser picks the keyring entry for the weather API key.
func keyringUser(cfg *Config, user string) (string, error) {
	if user != "" {
		return user, nil
	}
	if cfg.Weather.KeyringUser != "" {
		return cfg.Weather.KeyringUser, nil
	}
	return "", fmt.Errorf("no keyring user: pass --user or set weather.keyring_user")
}

// StoreWeatherKey saves the weather API key in the OS keyring. An empty user
// falls back to weather.keyring_user.
func StoreWeatherKey(w io.Writer, user, value string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	user, err = keyringUser(app.config, user)
	if err != nil {
		return err
	}
	if err := secrets.Set(user, value); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "stored weather key for %q in the %s keyring\n", user, secrets.Service)
	return nil
}

// ForgetWeatherKey removes the weather API key from the OS keyring.
func ForgetWeatherKey(w io.Writer, user string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	user, err = keyringUser(app.config, user)
	if err != nil {
		return err
	}
	if err := secrets.Delete(user); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "removed weather key for %q\n", user)
	return nil
}

// ResetPrompts clears every one-time prompt flag so each prompt is shown
// again on its next trigger.
func ResetPrompts(w io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	flags, err := prefs.Open(app.config.Storage.PrefsDir)
	if err != nil {
		return err
	}
	keys := flags.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		if err := flags.Delete(k); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "cleared %s\n", k)
	}
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(w, "no prompt flags set")
	}
	return nil
}
