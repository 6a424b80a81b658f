package common

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	NA       = "N/A"
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowNode     *snowflake.Node
	snowNodeOnce sync.Once
)

// UUIDint64 returns a time ordered unique 64 bit id
func UUIDint64() int64 {
	snowNodeOnce.Do(func() {
		var err error
		snowNode, err = snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
	})
	return snowNode.Generate().Int64()
}

func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}

// RandomDigits returns n decimal digits from crypto/rand
func RandomDigits(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			sb.WriteByte('0')
			continue
		}
		sb.WriteByte(byte('0' + v.Int64()))
	}
	return sb.String()
}

// RandomHex returns a hex string made of n random bytes
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

var turkishLower = cases.Lower(language.Turkish)

// FoldTR lower-cases with Turkish rules so that "IŞIK" and "ışık" compare equal
func FoldTR(s string) string {
	return turkishLower.String(strings.TrimSpace(s))
}

var asciiReplacer = strings.NewReplacer("ı", "i", "İ", "i")

// Slugify builds an URL slug from a product or page title: "Açılış Çelengi" -> "acilis-celengi"
func Slugify(s string) string {
	s = asciiReplacer.Replace(FoldTR(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var sb strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// InSlice reports whether v is one of the values
func InSlice(v string, values []string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// StrongPassword at least 8 characters mixing upper case, lower case and digits
func StrongPassword(password string) bool {
	if utf8.RuneCountInString(password) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// SearchFolds lower-case forms of a search term: Turkish folding first, plus
// the plain folding when it differs, so "IŞIK" finds "ışık" and "IRIS" still finds "iris"
func SearchFolds(q string) []string {
	tr := FoldTR(q)
	plain := strings.ToLower(strings.TrimSpace(q))
	if plain == tr {
		return []string{tr}
	}
	return []string{tr, plain}
}
