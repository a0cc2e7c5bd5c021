package systems

// Scene is the flat list of render components a frame draws. Entity
// hierarchies live in the transforms.
type Scene struct {
	renderers []*MeshRenderer
	combines  []*MeshCombine
}

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) AddRenderer(mr *MeshRenderer) {
	s.renderers = append(s.renderers, mr)
}

func (s *Scene) AddCombine(mc *MeshCombine) {
	s.combines = append(s.combines, mc)
}

func (s *Scene) Combines() []*MeshCombine {
	return s.combines
}

// Renderers returns the scene's renderers followed by those produced by
// processed combines.
func (s *Scene) Renderers() []*MeshRenderer {
	out := make([]*MeshRenderer, 0, len(s.renderers))
	out = append(out, s.renderers...)
	for _, mc := range s.combines {
		out = append(out, mc.combined...)
	}
	return out
}

func (s *Scene) Clear() {
	s.renderers = nil
	s.combines = nil
}
