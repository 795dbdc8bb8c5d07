package rediskey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const TranslationPrefix = "translation"

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildTranslationKey returns "translation:{lang}:{sha256(text)}".
func BuildTranslationKey(lang, text string) string {
	sum := sha256.Sum256([]byte(text))
	return NamespaceKey(TranslationPrefix, lang+":"+hex.EncodeToString(sum[:]))
}
