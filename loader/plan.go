package loader

import (
	"sort"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"github.com/pkg/errors"
)

// MaxCogs is the number of cogs in a Propeller.
const MaxCogs = 8

// Plan maps cogs to the images they receive. It is filled before the
// session starts and only read afterwards.
type Plan struct {
	images map[int]*imageParse.Image
}

func NewPlan() *Plan {
	return &Plan{images: make(map[int]*imageParse.Image)}
}

// Add assigns img to cog (1..8). Each cog takes one image.
func (p *Plan) Add(cog int, img *imageParse.Image) error {
	if cog < 1 || cog > MaxCogs {
		return errors.Wrapf(ErrInvalidPlan, "cog %d out of range 1-%d", cog, MaxCogs)
	}
	if _, ok := p.images[cog]; ok {
		return errors.Wrapf(ErrInvalidPlan, "cog %d already has an image", cog)
	}
	if err := imageParse.Validate(img.Name, img.Data); err != nil {
		return err
	}
	p.images[cog] = img
	return nil
}

func (p *Plan) Len() int {
	return len(p.images)
}

// Image returns the image assigned to cog, or nil.
func (p *Plan) Image(cog int) *imageParse.Image {
	return p.images[cog]
}

// Cogs returns the planned cogs in ascending order.
func (p *Plan) Cogs() []int {
	cogs := make([]int, 0, len(p.images))
	for cog := range p.images {
		cogs = append(cogs, cog)
	}
	sort.Ints(cogs)
	return cogs
}

// TotalSize is the number of image bytes in the plan.
func (p *Plan) TotalSize() int {
	total := 0
	for _, img := range p.images {
		total += img.Size()
	}
	return total
}

// Placement is where one image lands in hub RAM.
type Placement struct {
	Cog       int
	Base      int // address of the first image byte
	Workspace int // start of the VAR area, followed by the stack
}

// Layout places the images back to back from address 0 in ascending cog
// order. The workspace of the i-th image starts at workspaceBase plus the
// sizes of the images before it plus i workspaces:
//
//	Workspace[i] = workspaceBase + sum(size[0..i-1]) + i*WorkspaceSize
//
// With workspaceBase 0 this is sum(size[0..i-1]) + i*WorkspaceSize. A
// negative workspaceBase (the session default) uses TotalSize, which puts
// the workspaces right after the last image so they never overlap code.
func (p *Plan) Layout(workspaceBase int) ([]Placement, error) {
	if len(p.images) == 0 {
		return nil, errors.Wrap(ErrInvalidPlan, "no images")
	}
	if workspaceBase < 0 {
		workspaceBase = p.TotalSize()
	}

	layout := make([]Placement, 0, len(p.images))
	base := 0
	for i, cog := range p.Cogs() {
		layout = append(layout, Placement{
			Cog:       cog,
			Base:      base,
			Workspace: workspaceBase + base + i*imageParse.WorkspaceSize,
		})
		base += p.images[cog].Size()
	}

	last := layout[len(layout)-1]
	if end := last.Workspace + imageParse.WorkspaceSize; end > imageParse.HubSize {
		return nil, errors.Wrapf(ErrInvalidPlan, "needs %d bytes of hub RAM, %d available", end, imageParse.HubSize)
	}
	return layout, nil
}
