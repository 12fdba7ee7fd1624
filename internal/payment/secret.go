package payment

import (
	"os"
	"sync"

	"example.com/orderfulfillment/internal/apperr"
)

// SecretProvider resolves the webhook-signing secret once and caches it for
// the process lifetime, reading it from the path named by
// config.Payment.WebhookSecretRef — a mounted secret file rather than a
// bare environment variable.
type SecretProvider struct {
	path string

	once   sync.Once
	secret []byte
	err    error
}

// NewSecretProvider создаёт провайдер секрета подписи webhook по пути к
// файлу секрета.
func NewSecretProvider(path string) *SecretProvider {
	return &SecretProvider{path: path}
}

// Secret returns the cached webhook secret, reading it from disk on first
// use. A missing file is not itself an error here — callers decide whether
// that's acceptable (dev mode) or fatal (production).
func (p *SecretProvider) Secret() ([]byte, error) {
	p.once.Do(func() {
		data, err := os.ReadFile(p.path)
		if err != nil {
			if os.IsNotExist(err) {
				p.err = nil
				p.secret = nil
				return
			}
			p.err = apperr.Wrap(apperr.KindFatalInternal, "чтение секрета подписи webhook", err)
			return
		}
		p.secret = data
	})
	return p.secret, p.err
}
