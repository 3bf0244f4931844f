package geometry_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGeometry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Geometry Pipeline Suite")
}
