package rangescmder

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

const authDiff = `@@ -10,2 +10,4 @@
 func login() {
+	check()
+	audit()
 }
`

var _ = Describe("rangesCommander", func() {
	var (
		ctx       context.Context
		provider  *testutils.MockDiffProvider
		extractor *diffrange.Extractor
		buf       *bytes.Buffer
		c         *rangesCommander
		path      string
	)

	BeforeEach(func() {
		cliui.Plain()
		ctx = context.Background()
		provider = testutils.NewMockDiffProvider()

		var err error
		extractor, err = diffrange.New(diffrange.Config{Provider: provider})
		Expect(err).NotTo(HaveOccurred())

		path, err = filepath.Abs("auth.go")
		Expect(err).NotTo(HaveOccurred())
		provider.Diffs[path] = authDiff

		buf = &bytes.Buffer{}
		c = &rangesCommander{out: buf}
	})

	It("prints the changed lines", func() {
		Expect(c.run(ctx, extractor, "auth.go")).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("modified"))
		Expect(buf.String()).To(ContainSubstring("11-12"))
		Expect(buf.String()).To(ContainSubstring("2 lines"))
	})

	It("prints JSON", func() {
		c.jsonOut = true
		Expect(c.run(ctx, extractor, "auth.go")).To(Succeed())

		var res diffrange.Result
		Expect(json.Unmarshal(buf.Bytes(), &res)).To(Succeed())
		Expect(res.ChangeType).To(Equal(diffrange.ChangeModified))
		Expect(res.TotalChangedLines).To(Equal(2))
	})

	It("reports files outside a repository as unchanged", func() {
		provider.Repo = false
		Expect(c.run(ctx, extractor, "auth.go")).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("No changes in auth.go"))
	})
})
