// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package process runs the harness's external collaborators.
//
// Every tool the harness drives (cmake, make, the compiler under test, gcc,
// the reference binary, the simulator, diff) goes through [ProcessManager],
// so pipelines can be exercised in tests with [MockProcessManager] or with
// small shell-script fakes.
//
// # Timeouts
//
// [Spec.Timeout] bounds one invocation. When it fires the whole process group
// is killed, so a simulator that forks a JVM does not outlive its case, and
// the returned [CommandError] has TimedOut set. A timeout is otherwise
// reported exactly like an abnormal exit.
//
// # Redirection
//
// Stdin and stdout may be bound to files inside the case's slot; stderr is
// always captured because the simulator uses it as its diagnostic channel.
//
// # Work Directory Lock
//
// [WorkLock] is an flock-based guard that keeps two harness processes from
// sharing the same slots, quarantine and statistics directories.
package process
