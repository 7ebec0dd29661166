package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"trustpay/internal/domain"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

func TestNormalizeIdentity(t *testing.T) {
	rq := require.New(t)

	rq.Equal(value.Identity("@alice"), value.NormalizeIdentity("alice"))
	rq.Equal(value.Identity("@alice"), value.NormalizeIdentity("@alice"))
	rq.Equal(value.Identity("@alice"), value.NormalizeIdentity("@ALICE"))
	rq.Equal(value.Identity("@alice"), value.NormalizeIdentity("  Alice "))
}

func TestParseIdentity(t *testing.T) {
	rq := require.New(t)

	id, err := value.ParseIdentity("@Bob")
	rq.NoError(err)
	rq.Equal(value.Identity("@bob"), id)

	_, err = value.ParseIdentity("")
	rq.True(domain.HasCode(err, errcodes.InvalidIdentity))

	_, err = value.ParseIdentity("@")
	rq.True(domain.HasCode(err, errcodes.InvalidIdentity))

	_, err = value.ParseIdentity("   ")
	rq.True(domain.HasCode(err, errcodes.InvalidIdentity))
}

func TestIdentityEqual(t *testing.T) {
	rq := require.New(t)

	rq.True(value.Identity("@alice").Equal("@ALICE"))
	rq.True(value.Identity("alice").Equal("@alice"))
	rq.False(value.Identity("@alice").Equal("@bob"))
}
