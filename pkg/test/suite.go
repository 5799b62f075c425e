// Package test provides a thin testify suite wrapper shared by this
// project's package-level test suites.
package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite wraps testify's suite with a context convenience field.
type Suite struct {
	suite.Suite
	Ctx context.Context
}

func (s *Suite) SetupTest() {
	s.Ctx = context.Background()
}

func NewSuite() *Suite {
	return &Suite{}
}

func (s *Suite) Assert() *assert.Assertions {
	return s.Assertions
}

// Run runs a suite from a standard Test* function.
func Run(t *testing.T, s suite.TestingSuite) {
	suite.Run(t, s)
}
