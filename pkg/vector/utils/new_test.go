package vectorutils_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/vector/sqlitevec"
	vectorutils "github.com/releaselens/releaselens/pkg/vector/utils"
)

var _ = Describe("NewVectorDriver", func() {
	It("builds a sqlite-vec driver from a path and dimensions", func() {
		d, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
			ProviderType: "sqlite",
			Path:         filepath.Join(GinkgoT().TempDir(), "test.db"),
			Dimensions:   8,
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)

		Expect(d).To(BeAssignableToTypeOf(&sqlitevec.SQLiteVecDriver{}))
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
			ProviderType: "postgres",
		})
		Expect(err).To(HaveOccurred())
	})
})
