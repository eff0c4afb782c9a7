package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jpalmerr/winevent/internal/query"
)

// mockRecord mirrors the JSON Get-WinEvent prints through ConvertTo-Json.
type mockRecord struct {
	ID               int    `json:"Id"`
	ProviderName     string `json:"ProviderName"`
	LogName          string `json:"LogName"`
	ProcessID        int    `json:"ProcessId"`
	ThreadID         int    `json:"ThreadId"`
	MachineName      string `json:"MachineName"`
	TimeCreated      string `json:"TimeCreated"`
	LevelDisplayName string `json:"LevelDisplayName"`
	Message          string `json:"Message"`
}

var mockMessages = []string{
	"Name resolution for the name example.com timed out after none of the configured DNS servers responded.",
	"The Windows Update service entered the running state.",
	"Faulting application name: notepad.exe, version: 10.0.19041.1",
	"The DNS client service could not contact the domain controller.",
}

var mockLevels = []string{"Information", "Warning", "Error"}

// newMockEventLog returns a runner that answers every query with zero to
// three fabricated records, so the demo runs on any OS. Each provider in
// the query takes turns writing them.
func newMockEventLog() query.Runner {
	return query.RunnerFunc(func(ctx context.Context, q query.Query, onStderr func([]byte)) (query.Result, error) {
		// simulate the PowerShell start-up cost
		select {
		case <-time.After(time.Duration(50+rand.Intn(150)) * time.Millisecond):
		case <-ctx.Done():
			return query.Result{}, ctx.Err()
		}

		var providers []string
		for _, p := range strings.Split(q.Providers, ",") {
			if p = strings.TrimSpace(p); p != "" {
				providers = append(providers, p)
			}
		}

		n := rand.Intn(4)
		if n > q.MaxEvents {
			n = q.MaxEvents
		}
		if n == 0 {
			// Get-WinEvent reports an empty result on stderr and exits non-zero
			onStderr([]byte("Get-WinEvent : No events were found that match the specified selection criteria.\r\n"))
			return query.Result{ExitCode: 1}, nil
		}

		records := make([]mockRecord, n)
		for i := range records {
			records[i] = mockRecord{
				ID:               1000 + rand.Intn(100),
				ProviderName:     providers[i%len(providers)],
				LogName:          "System",
				ProcessID:        rand.Intn(9000),
				ThreadID:         rand.Intn(9000),
				MachineName:      "DEMO-PC",
				TimeCreated:      fmt.Sprintf("/Date(%d)/", time.Now().UnixMilli()),
				LevelDisplayName: mockLevels[rand.Intn(len(mockLevels))],
				Message:          mockMessages[rand.Intn(len(mockMessages))],
			}
		}

		// a single record is printed as an object, not an array
		var out []byte
		var err error
		if n == 1 {
			out, err = json.MarshalIndent(records[0], "", "    ")
		} else {
			out, err = json.MarshalIndent(records, "", "    ")
		}
		if err != nil {
			return query.Result{}, err
		}
		return query.Result{Stdout: out}, nil
	})
}
