package executor

// AOTExecutor runs an artifact persisted on disk. The artifact outlives
// the process that compiled it; loading it never recompiles the program.
type AOTExecutor struct {
	*JITExecutor
	Path string
}

var _ Executor = (*AOTExecutor)(nil)

// LoadAOT reads the artifact at path and prepares it for invocation.
func LoadAOT(path string) (*AOTExecutor, error) {
	art, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	j, err := NewJIT(art)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded artifact %s (%s)", path, art.Hash)
	return &AOTExecutor{JITExecutor: j, Path: path}, nil
}
