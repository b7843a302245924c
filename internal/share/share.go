// Package share implements the credentialed SMB share connector: UNC
// path extraction from a deployer command, a TCP liveness probe, and a
// classified retry policy around mounting/unmounting the share.
package share

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
)

// shareRe extracts "\\host\share" from a command string that invokes a
// script living on that share.
var shareRe = regexp.MustCompile(`(\\\\[^\\]+\\[^\\]+)\\.*`)

// ExtractShare returns the UNC share portion of command, or "" if none
// is present.
func ExtractShare(command string) string {
	m := shareRe.FindStringSubmatch(command)
	if m == nil {
		return ""
	}
	return m[1]
}

// Config is the subset of broker configuration the connector needs.
type Config struct {
	NetworkUsername string
	NetworkPassword string

	TestConnectionHost             string
	TestConnectionPort             int
	TestConnectionTries            int
	TestConnectionSleepBeforeRetry time.Duration

	ConnectionTries            int
	ConnectionSleepBeforeRetry time.Duration
}

// Mounter abstracts the platform-specific WNetAddConnection2 /
// WNetCancelConnection2 calls so Connector is testable off Windows.
type Mounter interface {
	Add(share, username, password string) error
	Cancel(share string) error
}

// Connector tracks connection state for one network share across the
// lifetime of the daemon, mirroring the original's interior-mutable
// credential-downgrade behavior: once a logon failure is observed with
// explicit credentials, the connector falls back to the service
// identity (no username/password) for the remainder of its life.
type Connector struct {
	mu      sync.Mutex
	cfg     Config
	share   string
	mounter Mounter

	connected bool
}

// New returns a Connector for the share embedded in command, using m as
// the platform mount implementation. If command names no share, Connect
// is a no-op that always succeeds (matches the original: deployer not
// on the network).
func New(command string, cfg Config, m Mounter) *Connector {
	return &Connector{
		cfg:     cfg,
		share:   ExtractShare(command),
		mounter: m,
	}
}

// SetCredentials updates the username/password used for future Connect
// calls (the SetNetworkUser command).
func (c *Connector) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.NetworkUsername = username
	c.cfg.NetworkPassword = password
}

// Connect establishes the share connection if necessary, returning an
// error only when every classified retry is exhausted.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.cfg.NetworkUsername == "" {
		logging.Infof("[share] no username provided, using service identity")
		return nil
	}
	if c.share == "" {
		logging.Infof("[share] deployer command is not on the network, skipping")
		return nil
	}

	c.disconnectLocked()

	if c.cfg.TestConnectionHost != "" && !c.testHostConnect(ctx) {
		logging.Errorf("[share] test-host %s:%d did not respond, not connecting", c.cfg.TestConnectionHost, c.cfg.TestConnectionPort)
		return errTestHostUnreachable
	}

	tries := c.cfg.ConnectionTries
	if tries <= 0 {
		tries = 1
	}
	sleep := c.cfg.ConnectionSleepBeforeRetry

	for i := 0; i < tries && !c.connected; i++ {
		err := c.mounter.Add(c.share, c.cfg.NetworkUsername, c.cfg.NetworkPassword)
		if err == nil {
			logging.Infof("[share] connected to %s as %s", c.share, c.cfg.NetworkUsername)
			c.connected = true
			break
		}

		switch classify(err) {
		case classLogonFailure:
			logging.Errorf("[share] logon failure connecting to %s: %v, falling back to service identity", c.share, err)
			if c.cfg.NetworkUsername != "" {
				c.cfg.NetworkUsername = ""
				c.cfg.NetworkPassword = ""
				continue
			}
			return err
		case classAlreadyConnected:
			logging.Infof("[share] %s already connected from this identity, disconnecting and retrying", c.share)
			c.connected = true
			c.disconnectLocked()
		case classUnreachable:
			logging.Errorf("[share] network path %s unreachable: %v", c.share, err)
			time.Sleep(sleep)
		case classDriveAlreadyMapped:
			logging.Infof("[share] drive already mapped for %s, disconnecting and retrying", c.share)
			c.connected = true
			c.disconnectLocked()
		default:
			return err
		}
	}

	if !c.connected {
		return errConnectExhausted
	}
	return nil
}

// Disconnect tears down the share connection if one is active.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Connector) disconnectLocked() {
	if !c.connected {
		return
	}
	if err := c.mounter.Cancel(c.share); err != nil && classify(err) != classNotConnected {
		logging.Errorf("[share] error disconnecting from %s: %v", c.share, err)
	}
	c.connected = false
}

func (c *Connector) testHostConnect(ctx context.Context) bool {
	tries := c.cfg.TestConnectionTries
	if tries <= 0 {
		tries = 1
	}
	addr := net.JoinHostPort(c.cfg.TestConnectionHost, strconv.Itoa(c.cfg.TestConnectionPort))

	for i := 0; i < tries; i++ {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			conn.Close()
			return true
		}
		logging.Errorf("[share] test connection to %s failed (%d/%d): %v", addr, i+1, tries, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.TestConnectionSleepBeforeRetry):
		}
	}
	return false
}
