package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	"github.com/papercomputeco/mnemo/pkg/config"
)

func loadConfig(dir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(dir, ".mnemo", "config.toml"))
	Expect(err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	Expect(toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}

func runInit(args ...string) error {
	cmd := initcmder.NewInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute()
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		f := initcmder.NewInitCmd().Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mnemo-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .mnemo directory with a default config", func() {
		Expect(runInit()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".mnemo"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Storage.Provider).To(Equal("sqlite"))
		Expect(cfg.API.Listen).To(Equal(":8765"))
	})

	It("does not overwrite an existing config without a preset", func() {
		Expect(runInit("--preset", "ollama")).To(Succeed())
		Expect(runInit()).To(Succeed())

		Expect(loadConfig(tmpDir).Embedding.Provider).To(Equal("ollama"))
	})

	It("keeps other files in an existing directory", func() {
		dir := filepath.Join(tmpDir, ".mnemo")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		recall := filepath.Join(dir, "recall.json")
		Expect(os.WriteFile(recall, []byte(`{"query":"x"}`), 0o644)).To(Succeed())

		Expect(runInit()).To(Succeed())

		data, err := os.ReadFile(recall)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"query":"x"}`))
	})

	Describe("--preset", func() {
		It("writes the ollama preset", func() {
			Expect(runInit("--preset", "ollama")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("writes the postgres preset", func() {
			Expect(runInit("--preset", "postgres")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Storage.Provider).To(Equal("postgres"))
			Expect(cfg.Storage.PostgresDSN).To(HavePrefix("postgres://"))
			Expect(cfg.VectorStore.Provider).To(Equal("chromem"))
		})

		It("overwrites the config on re-init", func() {
			Expect(runInit("--preset", "postgres")).To(Succeed())
			Expect(runInit("--preset", "local")).To(Succeed())

			Expect(loadConfig(tmpDir).Storage.Provider).To(Equal("sqlite"))
		})

		It("rejects unknown preset names", func() {
			err := runInit("--preset", "invalid")
			Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		})
	})

	Describe("--preset with a remote URL", func() {
		It("fetches and writes the remote config.toml", func() {
			remote := `version = 0

[storage]
provider = "memory"

[embedding]
dimensions = 512
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, remote)
			}))
			defer server.Close()

			Expect(runInit("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Storage.Provider).To(Equal("memory"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(512)))
		})

		It("returns an error for a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(runInit("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns an error for invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			Expect(runInit("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns an error for an unreachable URL", func() {
			Expect(runInit("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})
