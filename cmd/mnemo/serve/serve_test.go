package servecmder

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewServeCmd", func() {
	It("defaults the listen address from config", func() {
		cmd := NewServeCmd()
		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8765"))
	})

	It("registers watch and stack flags", func() {
		cmd := NewServeCmd()
		for _, name := range []string{"watch", "root", "debounce", "storage-provider", "vector-store-provider", "eventstream-provider"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("has the stdio MCP subcommand", func() {
		cmd := NewServeCmd()
		Expect(cmd.Commands()).To(HaveLen(1))
		Expect(cmd.Commands()[0].Name()).To(Equal("mcp"))
		Expect(cmd.Commands()[0].Flags().Lookup("storage-provider")).NotTo(BeNil())
	})
})
