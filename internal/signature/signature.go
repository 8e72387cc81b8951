// Package signature содержит проверку подписи входящих вебхуков платёжного провайдера.
package signature

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Verifier проверяет HMAC-SHA512 подпись тела вебхука общим секретом.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт Verifier с указанным секретным ключом.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify проверяет подпись над необработанными байтами тела запроса.
// Тело должно передаваться ровно в том виде, в каком пришло по сети:
// пересериализация разобранного JSON меняет пробелы и порядок ключей
// и ломает подпись.
func (v *Verifier) Verify(rawBody []byte, header string) bool {
	if header == "" {
		return false
	}

	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}

// Sign вычисляет hex-подпись для указанного тела. Используется в тестах
// и при отладке интеграции с провайдером.
func (v *Verifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
