package validation

import (
	"strings"
	"testing"

	dErrors "attesto/pkg/domain-errors"

	"github.com/stretchr/testify/suite"
)

// LimitsSuite tests the validation helper functions.
//
// Justification: These are trust-boundary validators. The invariants
// "max+1 must fail" and "max must pass" are security-critical.
type LimitsSuite struct {
	suite.Suite
}

func TestLimitsSuite(t *testing.T) {
	suite.Run(t, new(LimitsSuite))
}

func (s *LimitsSuite) TestCheckCount() {
	s.Run("passes when count equals max", func() {
		s.NoError(CheckCount("content fields", MaxContentFields, MaxContentFields))
	})

	s.Run("passes when count is zero", func() {
		s.NoError(CheckCount("content fields", 0, MaxContentFields))
	})

	s.Run("fails when count exceeds max", func() {
		err := CheckCount("content fields", MaxContentFields+1, MaxContentFields)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "too many content fields")
	})
}

func (s *LimitsSuite) TestCheckStringLength() {
	s.Run("passes when length equals max", func() {
		s.NoError(CheckStringLength("title", strings.Repeat("a", MaxTitleLength), MaxTitleLength))
	})

	s.Run("fails when length exceeds max", func() {
		err := CheckStringLength("title", strings.Repeat("a", MaxTitleLength+1), MaxTitleLength)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "title exceeds max length of 200")
	})
}

func (s *LimitsSuite) TestCheckEachKeyLength() {
	s.Run("passes for short keys", func() {
		s.NoError(CheckEachKeyLength("content", map[string]any{"role": "dev"}, MaxContentKeyLength))
	})

	s.Run("fails when any key exceeds max", func() {
		values := map[string]any{"ok": 1, strings.Repeat("k", MaxContentKeyLength+1): 2}
		err := CheckEachKeyLength("content", values, MaxContentKeyLength)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
