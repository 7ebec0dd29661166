package notifier

import (
	"trustpay/pkg/contextx"
)

//nolint:gochecknoglobals // skip
var logger = contextx.LoggerFromContextOrDefault
