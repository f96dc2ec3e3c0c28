package company

import "errors"

var ErrCompanyNotResolved = errors.New("no company holds payroll data for period")
