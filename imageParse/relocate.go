package imageParse

const (
	// VarsSize is the VAR area each cog gets in its workspace.
	VarsSize = 512
	// StackSize is the stack each cog gets after its VAR area.
	StackSize = 1024
	// WorkspaceSize is the scratch area reserved per image.
	WorkspaceSize = VarsSize + StackSize
)

// Relocate returns a copy of img with its code moved up by baseOffset and
// its variables and stack placed at workspaceOffset. img itself is left
// untouched.
func Relocate(img *Image, baseOffset, workspaceOffset int) (*Image, error) {
	out := img.Clone()
	h, err := out.Header()
	if err != nil {
		return nil, err
	}
	h.PBase += uint16(baseOffset)
	h.PCurr += uint16(baseOffset)
	h.VBase = uint16(workspaceOffset)
	h.DBase = uint16(workspaceOffset + VarsSize)
	h.DCurr = uint16(workspaceOffset + VarsSize + 4)
	out.SetHeader(h)
	return out, nil
}
