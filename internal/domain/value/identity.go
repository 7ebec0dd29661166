package value

import (
	"strings"

	"trustpay/internal/domain"
	"trustpay/pkg/errcodes"
)

// Identity — телеграм-идентичность участника сделки ("@username").
// Хранится в нормализованном виде: нижний регистр, с ведущим "@".
type Identity string

func (i Identity) String() string {
	return string(i)
}

// NormalizeIdentity приводит произвольный ввод ("Alice", "@alice", "@ALICE")
// к каноничной форме "@alice". Сравнение идентичностей всегда делается
// по нормализованной форме.
func NormalizeIdentity(raw string) Identity {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "@")

	return Identity("@" + s)
}

// ParseIdentity — NormalizeIdentity + проверка, что после нормализации
// осталось непустое имя.
func ParseIdentity(raw string) (Identity, error) {
	id := NormalizeIdentity(raw)
	if id == "@" {
		return "", domain.NewError(errcodes.InvalidIdentity, "empty identity")
	}

	return id, nil
}

// Equal сравнивает с другой идентичностью без учёта регистра и префикса "@".
func (i Identity) Equal(other Identity) bool {
	return NormalizeIdentity(string(i)) == NormalizeIdentity(string(other))
}
