package testutils

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// VectorFixtures are unit-length 4-dimensional documents across two
// projects.
func VectorFixtures() []vector.Document {
	return []vector.Document{
		{ID: "doc-1", ProjectID: "p1", Version: "v1", Embedding: []float32{1, 0, 0, 0}},
		{ID: "doc-2", ProjectID: "p1", Version: "v1", Embedding: []float32{0, 1, 0, 0}},
		{ID: "doc-3", ProjectID: "p2", Version: "v1", Embedding: []float32{0, 0, 1, 0}},
		{ID: "doc-4", ProjectID: "p2", Version: "v1", Embedding: []float32{0.6, 0.8, 0, 0}},
	}
}

// DescribeVectorDriver registers the behavior every 4-dimensional
// vector.Driver shares. newDriver is called before each spec.
func DescribeVectorDriver(newDriver func() vector.Driver) {
	var (
		ctx    context.Context
		driver vector.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() { driver.Close() })
		Expect(driver.Add(ctx, VectorFixtures())).To(Succeed())
	})

	It("does nothing for empty input", func() {
		Expect(driver.Add(ctx, nil)).To(Succeed())
		docs, err := driver.Get(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(BeEmpty())
	})

	It("retrieves documents with their metadata and embeddings", func() {
		docs, err := driver.Get(ctx, []string{"doc-4", "nonexistent"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].ID).To(Equal("doc-4"))
		Expect(docs[0].ProjectID).To(Equal("p2"))
		Expect(docs[0].Version).To(Equal("v1"))
		Expect(docs[0].Embedding).To(HaveLen(4))
		Expect(docs[0].Embedding[0]).To(BeNumerically("~", 0.6, 0.001))
		Expect(docs[0].Embedding[1]).To(BeNumerically("~", 0.8, 0.001))
	})

	It("updates an existing document", func() {
		Expect(driver.Add(ctx, []vector.Document{
			{ID: "doc-1", ProjectID: "p1", Version: "v2", Embedding: []float32{0, 0, 0, 1}},
		})).To(Succeed())

		docs, err := driver.Get(ctx, []string{"doc-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].Version).To(Equal("v2"))
		Expect(docs[0].Embedding[3]).To(BeNumerically("~", 1, 0.001))
	})
}
