package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riotkit-org/backup-e2e/internal/handlers"
	"github.com/riotkit-org/backup-e2e/internal/server"
	"github.com/riotkit-org/backup-e2e/internal/services"
)

func TestBmt(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bmt Suite")
}

var _ = Describe("bmt", func() {
	var (
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := rootCmd()
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(append(args, "--release-file", "", "--build-dir", GinkgoT().TempDir()))
		return cmd.ExecuteContext(context.Background())
	}

	BeforeEach(func() {
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	Context("login", func() {
		var url string

		BeforeEach(func() {
			accounts := services.NewAccounts([]byte("secret"), time.Hour)
			accounts.Add(services.Account{Username: "admin", Email: "admin@riotkit.org", Password: "admin"})
			srv, err := server.NewServer("127.0.0.1:0", func(router *gin.RouterGroup) {
				handlers.New(accounts).Register(router)
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = srv.Start(ctx)
			}()
			DeferCleanup(func() {
				cancel()
				<-done
			})
			url = srv.URL()
		})

		// Given a running repository with an admin account
		// When logging in with valid credentials
		// Then the token is printed
		It("should print a token", func() {
			// Act
			err := execute("login", "--url", url, "--username", "admin", "--password", "admin")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(strings.TrimSpace(stdout.String()), ".")).To(Equal(2))
		})

		It("should fail with a wrong password", func() {
			err := execute("login", "--url", url, "--username", "admin", "--password", "nope")

			Expect(err).To(HaveOccurred())
			Expect(stdout.String()).To(BeEmpty())
			Expect(stderr.String()).To(ContainSubstring("login as admin failed"))
		})
	})

	Context("wait", func() {
		It("should require an action name", func() {
			Expect(execute("wait")).To(MatchError(ContainSubstring("requires at least 1 arg")))
		})
	})

	Context("cluster", func() {
		It("should reject an unknown cluster mode", func() {
			err := execute("cluster", "up", "--cluster-mode", "kind")

			Expect(err).To(MatchError(ContainSubstring(`unknown cluster mode "kind"`)))
		})
	})
})
