package workerapi

import "errors"

var errUnauthorized = errors.New("missing or incorrect node secret")
