package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riotkit-org/backup-e2e/internal/manifests"
	"github.com/riotkit-org/backup-e2e/internal/models"
	"github.com/riotkit-org/backup-e2e/internal/store"
)

const (
	dbNamespace   = "db"
	dbLocalPort   = 15432
	dbCredentials = "riotkit"
	moviesTable   = "movies"

	adminUser     = "admin"
	adminEmail    = "riotkit@riseup.net"
	adminPassword = "admin"
	collectionID  = "iwa-ait"
)

// Installing runs first: it installs into the namespaces the provisioner
// reuses later and deletes them afterwards.
var _ = Describe("Backup e2e", Ordered, func() {
	Describe("Installing", Label("installing"), func() {
		// Given the controller sources at the released revision
		// When deployed through skaffold
		// Then a controller pod is running
		It("installs the backup maker controller and it does not crash", func(ctx SpecContext) {
			const ns = "backup-maker-controller"

			dir, err := checkouts.Checkout(ctx, cfg.Controller.RepositoryURL, cfg.Release.ControllerVersion)
			Expect(err).NotTo(HaveOccurred())

			Expect(kubectl.WithNamespace(ctx, scope, ns, false, func() error {
				Expect(kubectl.Apply(ctx, filepath.Join(dir, cfg.Controller.CRDPath), ns)).To(Succeed())
				Expect(deployer.Deploy(ctx, dir, ns)).To(Succeed())

				Expect(kubectl.HasPodWithLabel(ctx, "app=backup-maker-controller", ns)).To(BeTrue())
				return nil
			})).To(Succeed())
		})

		It("installs the backup repository and it does not crash", func(ctx SpecContext) {
			ns := cfg.Server.Namespace

			dir, err := checkouts.Checkout(ctx, cfg.Server.RepositoryURL, cfg.Release.ServerVersion)
			Expect(err).NotTo(HaveOccurred())

			Expect(kubectl.WithNamespace(ctx, scope, ns, false, func() error {
				Expect(deployer.Deploy(ctx, dir, ns)).To(Succeed())

				Expect(kubectl.HasPodWithLabel(ctx, cfg.Server.PodLabel, ns)).To(BeTrue())
				return nil
			})).To(Succeed())
		})
	})

	Describe("Postgres backup and restore", Label("postgres"), func() {
		BeforeEach(func(ctx SpecContext) {
			Expect(provisioner.Provision(ctx)).To(Succeed())
		})

		It("backs up a database and restores it after data loss", func(ctx SpecContext) {
			Expect(kubectl.WithNamespace(ctx, scope, dbNamespace, false, func() error {
				db := deployPostgres(ctx)
				defer db.Close()

				By("seeding the database")
				Expect(db.CreateTable(ctx, moviesTable,
					store.Column{Name: "id", Type: "SERIAL PRIMARY KEY"},
					store.Column{Name: "title", Type: "TEXT NOT NULL"},
					store.Column{Name: "year", Type: "INTEGER NOT NULL"},
				)).To(Succeed())
				Expect(db.InsertRows(ctx, moviesTable, []string{"title", "year"},
					[]any{"Strike", 1925},
					[]any{"Land and Freedom", 1995},
					[]any{"The Take", 2004},
				)).To(Succeed())

				By("preparing the backup repository")
				Expect(serverSvc.CreateUser(ctx, adminUser, adminEmail, adminPassword)).To(Succeed())
				Expect(serverSvc.CreateCollection(ctx, manifests.Collection{
					Name:              collectionID,
					Description:       "Postgres backups",
					FilenameTemplate:  "iwa-ait-${version}.tar.gz",
					MaxBackupsCount:   5,
					MaxOneVersionSize: "1M",
					MaxCollectionSize: "5M",
					StrategyName:      "fifo",
				})).To(Succeed())

				var token string
				Eventually(func(ctx context.Context) (err error) {
					token, err = serverSvc.Login(ctx, adminUser, adminPassword)
					return err
				}).WithContext(ctx).WithTimeout(time.Minute).WithPolling(2 * time.Second).Should(Succeed())

				return kubectl.WithNamespace(ctx, scope, cfg.SubjectNamespace, false, func() error {
					By("backing up")
					Expect(clientSvc.ScheduleBackup(ctx, token, manifests.Schedule{
						Name:          "app1",
						Operation:     "backup",
						Email:         adminEmail,
						ScheduleEvery: "00 02 * * *",
						CollectionID:  collectionID,
						TemplateName:  "pg15",
						TemplateVars:  postgresVars(),
					})).To(Succeed())
					Expect(clientSvc.RequestBackupAction(ctx, "app1-backup", models.ActionBackup, "app1", "")).To(Succeed())
					Expect(clientSvc.BackupHasCompleted(ctx, "app1-backup")).To(BeTrue())

					By("losing data")
					Expect(db.DeleteRows(ctx, moviesTable)).To(Succeed())
					Expect(db.CountRows(ctx, moviesTable)).To(BeZero())

					By("restoring")
					Expect(clientSvc.RequestBackupAction(ctx, "app1-restore", models.ActionRestore, "app1", "")).To(Succeed())
					Expect(clientSvc.BackupHasCompleted(ctx, "app1-restore")).To(BeTrue())

					Expect(db.CountRows(ctx, moviesTable)).To(Equal(3))
					Expect(db.CountRows(ctx, moviesTable, store.Where("title", "Strike"))).To(Equal(1))
					return nil
				})
			})).To(Succeed())
		})
	})
})

// deployPostgres installs the test database in the current namespace and
// connects to it through a port-forward closed when the test ends.
func deployPostgres(ctx SpecContext) *store.Store {
	Expect(deployer.Deploy(ctx, filepath.Join(dataDir, "postgres_backup_test"), dbNamespace)).To(Succeed())
	Expect(kubectl.Wait(ctx, "deployment", "postgres", dbNamespace, "condition=Available", 180)).To(Succeed())

	forward, err := kubectl.PortForward(ctx, dbNamespace, "app=postgres", dbLocalPort, 5432)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(forward.Stop)

	var db *store.Store
	Eventually(func(ctx context.Context) (err error) {
		db, err = store.Connect(ctx, store.Options{
			Host:     "127.0.0.1",
			Port:     dbLocalPort,
			User:     dbCredentials,
			Password: dbCredentials,
			Database: dbCredentials,
		})
		return err
	}).WithContext(ctx).WithTimeout(time.Minute).WithPolling(2 * time.Second).Should(Succeed())
	return db
}

func postgresVars() string {
	return fmt.Sprintf(`Params:
  hostname: postgres.%[1]s.svc.cluster.local
  port: 5432
  db: %[2]s
  user: %[2]s
  password: %[2]s

Repository:
  url: http://backup-repository-server.%[3]s.svc.cluster.local:%[4]d
  collectionId: %[5]s
`, dbNamespace, dbCredentials, cfg.Server.Namespace, cfg.Server.RemotePort, collectionID)
}
