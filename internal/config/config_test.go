package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hamed0406/uptimeworker/internal/config"
)

// setenv sets key for the current test and restores it afterwards.
func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Load", func() {
		Context("with nothing configured", func() {
			It("should apply the defaults", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Env).To(Equal(config.EnvStaging))
				Expect(cfg.APIAddr).To(Equal("127.0.0.1:8080"))
				Expect(cfg.Store).To(Equal(config.StoreFile))
				Expect(cfg.DataDir).To(Equal(".data"))
				Expect(cfg.LogsDir).To(Equal(".logs"))
				Expect(cfg.CheckInterval).To(Equal(time.Minute))
				Expect(cfg.RotationInterval).To(Equal(24 * time.Hour))
				Expect(cfg.MaxTimeout).To(Equal(5 * time.Second))
				Expect(cfg.MaxConcurrentChecks).To(Equal(50))
				Expect(cfg.MaxChecks).To(Equal(5))
				Expect(cfg.Kafka.Topic).To(Equal("uptime-alerts"))
				Expect(cfg.Channels()).To(BeEmpty())
			})
		})

		Context("with a config file", func() {
			BeforeEach(func() {
				content := `
env: production
hashing_secret: s3cret
store: memory
check_interval: 30s
max_timeout: 2s
twilio:
  account_sid: AC123
  auth_token: token
  from_phone: "+15550000000"
kafka:
  brokers:
    - localhost:9092
`
				Expect(os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(content), 0o644)).To(Succeed())
			})

			It("should read values from the file", func() {
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Env).To(Equal(config.EnvProduction))
				Expect(cfg.Store).To(Equal(config.StoreMemory))
				Expect(cfg.CheckInterval).To(Equal(30 * time.Second))
				Expect(cfg.MaxTimeout).To(Equal(2 * time.Second))
				Expect(cfg.Twilio.AccountSID).To(Equal("AC123"))
				Expect(cfg.Kafka.Brokers).To(ConsistOf("localhost:9092"))
				Expect(cfg.Channels()).To(Equal([]string{"twilio", "kafka"}))
			})

			It("should let environment variables override the file", func() {
				setenv("CHECK_INTERVAL", "45s")
				setenv("TWILIO_ACCOUNT_SID", "AC999")
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.CheckInterval).To(Equal(45 * time.Second))
				Expect(cfg.Twilio.AccountSID).To(Equal("AC999"))
			})
		})

		Context("with a .env file", func() {
			It("should load variables from it", func() {
				Expect(os.WriteFile(filepath.Join(tempDir, ".env"), []byte("UPTIME_TEST_ONLY=1\n"), 0o644)).To(Succeed())
				DeferCleanup(os.Unsetenv, "UPTIME_TEST_ONLY")
				_, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(os.Getenv("UPTIME_TEST_ONLY")).To(Equal("1"))
			})
		})

		Context("with environment variables", func() {
			It("should parse broker lists and durations", func() {
				setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
				setenv("ROTATION_INTERVAL", "1h")
				setenv("LOG_CONSOLE", "true")
				cfg, err := config.Load(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Kafka.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
				Expect(cfg.RotationInterval).To(Equal(time.Hour))
				Expect(cfg.LogConsole).To(BeTrue())
			})
		})

		Context("with invalid values", func() {
			DescribeTable("should reject the configuration",
				func(key, value string) {
					setenv(key, value)
					_, err := config.Load(tempDir)
					Expect(err).To(HaveOccurred())
				},
				Entry("unknown env", "ENV", "dev"),
				Entry("unknown store", "STORE", "redis"),
				Entry("postgres without url", "STORE", "postgres"),
				Entry("bad log level", "LOG_LEVEL", "verbose"),
				Entry("bad api address", "API_ADDR", "not-an-address"),
				Entry("zero concurrency", "MAX_CONCURRENT_CHECKS", "0"),
				Entry("negative interval", "CHECK_INTERVAL", "-1s"),
				Entry("production without secret", "ENV", "production"),
				Entry("partial twilio credentials", "TWILIO_ACCOUNT_SID", "AC123"),
				Entry("bad slack webhook", "SLACK_WEBHOOK", "not a url"),
			)
		})
	})

	Describe("Validate", func() {
		It("should accept an empty api address", func() {
			cfg, err := config.Load(tempDir)
			Expect(err).NotTo(HaveOccurred())
			cfg.APIAddr = ""
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should require a topic when brokers are set", func() {
			cfg, err := config.Load(tempDir)
			Expect(err).NotTo(HaveOccurred())
			cfg.Kafka.Brokers = []string{"localhost:9092"}
			cfg.Kafka.Topic = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})
