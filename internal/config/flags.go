// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses the command line of the client.
//
// Flags:
//
//	-a remote API address in format [host]:[port]
//	-d local database DSN
//	-c/-config json file path with configs
//	-token bearer token of the signed in user
//	-device-id device identifier
//	-request-timeout remote request timeout (e.g., "15s")
//	-sync-interval background sync period (e.g., "1m")
//	-sync-always sync on every tick even with an empty queue
//	-max-retries attempts before an operation is quarantined
//	-log-file log file path
func ParseFlags() (*StructuredConfig, error) {
	var remoteAddress NetAddress
	var databaseDSN string
	var jsonConfigPath string
	var authToken string
	var deviceID string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var syncAlways bool
	var maxRetries int
	var logFile string

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.Var(&remoteAddress, "a", "Remote API address host:port")
	fs.StringVar(&databaseDSN, "d", "", "Local database DSN")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&authToken, "token", "", "Bearer token")
	fs.StringVar(&deviceID, "device-id", "", "Device identifier")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 15s)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 1m)")
	fs.BoolVar(&syncAlways, "sync-always", false, "Sync on every tick")
	fs.IntVar(&maxRetries, "max-retries", 0, "Attempts before an operation is quarantined")
	fs.StringVar(&logFile, "log-file", "", "Log file path")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	return &StructuredConfig{
		App: App{
			AuthToken: authToken,
			DeviceID:  deviceID,
		},
		Storage: Storage{
			DB: DB{DSN: databaseDSN},
		},
		Adapter: Adapter{
			HTTPAddress:    remoteAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Sync: Sync{
			Interval:   syncInterval,
			SyncAlways: syncAlways,
			MaxRetries: maxRetries,
		},
		Log:          Log{FilePath: logFile},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1..65535")
	}

	if host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
