// Package prof records runtime profiles of a mugectl run.
//
// A [Session] streams a CPU profile while a command executes and writes the
// snapshot profiles when it stops:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
//
// Block and mutex profiles are sampled only while a session that requests
// them is active. Empty paths disable the corresponding profile.
package prof
