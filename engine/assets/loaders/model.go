package loaders

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

type ModelParams struct {
	// Renderer the mesh uploads through. Nil keeps the mesh CPU-only.
	Renderer *renderer.Renderer
	Flags    resources.MeshFlags
	// FlipV converts OBJ texture coordinates (origin bottom-left) to top-left.
	FlipV bool
}

// ModelLoader imports Wavefront OBJ files. A sibling .mtl file is read when present.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	p := ModelParams{Flags: resources.DefaultMeshFlags, FlipV: true}
	if mp, ok := params.(*ModelParams); ok && mp != nil {
		p = *mp
	}

	objFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model %s", path)
	}
	defer objFile.Close()

	var mtl io.Reader = strings.NewReader("")
	mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
	if f, err := os.Open(mtlPath); err == nil {
		defer f.Close()
		mtl = f
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	model, err := DecodeOBJ(objFile, mtl, name, p)
	if err != nil {
		return nil, errors.Wrapf(err, "importing model %s", path)
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeMesh,
		Name:     name,
		FullPath: path,
		DataSize: uint64(model.Mesh.VertexCount()),
		Data:     model,
	}, nil
}

func (ml *ModelLoader) Unload(res *resources.Resource) error {
	if model, ok := res.Data.(*resources.ModelData); ok && model.Mesh != nil {
		model.Mesh.Destroy()
	}
	res.Data = nil
	return nil
}

type objVertexKey struct {
	position, uv, normal int
}

/**
 * @brief Builds a mesh from OBJ data. Polygons are fan-triangulated and
 * vertices sharing position, uv and normal indices are emitted once. Each
 * object becomes a submesh. Missing normals are generated smooth.
 */
func DecodeOBJ(objReader, mtlReader io.Reader, guid string, p ModelParams) (*resources.ModelData, error) {
	dec, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, errors.Wrap(err, "decoding obj")
	}
	for _, w := range dec.Warnings {
		core.LogWarn("obj %s: %s", guid, w)
	}

	var (
		positions []math.Vec3
		uvs       []math.Vec2
		normals   []math.Vec3
		indices   []uint32
		submeshes []resources.Submesh
		materials []string
		hasUV     = len(dec.Uvs) > 0
		hasNormal = len(dec.Normals) > 0
		unique    = make(map[objVertexKey]uint32)
	)

	addVertex := func(face obj.Face, i int) {
		key := objVertexKey{
			position: face.Vertices[i],
			uv:       attrIndex(face.Uvs, i, len(dec.Uvs)/2),
			normal:   attrIndex(face.Normals, i, len(dec.Normals)/3),
		}
		index, ok := unique[key]
		if !ok {
			index = uint32(len(positions))
			v := key.position * 3
			positions = append(positions, math.NewVec3(dec.Vertices[v], dec.Vertices[v+1], dec.Vertices[v+2]))
			if hasUV {
				uv := math.Vec2{}
				if key.uv >= 0 {
					uv = math.NewVec2(dec.Uvs[key.uv*2], dec.Uvs[key.uv*2+1])
					if p.FlipV {
						uv.Y = 1 - uv.Y
					}
				}
				uvs = append(uvs, uv)
			}
			if hasNormal {
				n := math.Vec3{}
				if key.normal >= 0 {
					k := key.normal * 3
					n = math.NewVec3(dec.Normals[k], dec.Normals[k+1], dec.Normals[k+2])
				}
				normals = append(normals, n)
			}
			unique[key] = index
		}
		indices = append(indices, index)
	}

	for _, o := range dec.Objects {
		start := uint32(len(indices))
		firstVertex := uint32(len(positions))
		material := ""
		for _, face := range o.Faces {
			if material == "" {
				material = face.Material
			}
			for i := range face.Vertices {
				if face.Vertices[i] < 0 || face.Vertices[i]*3+2 >= len(dec.Vertices) {
					return nil, core.InvalidArgumentf("object %s references missing vertex %d", o.Name, face.Vertices[i])
				}
			}
			// Triangulate as a fan around the first corner.
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(face, 0)
				addVertex(face, i-1)
				addVertex(face, i)
			}
		}
		count := uint32(len(indices)) - start
		if count == 0 {
			continue
		}
		submeshes = append(submeshes, resources.Submesh{
			StartVertex: firstVertex,
			VertexCount: uint32(len(positions)) - firstVertex,
			StartIndex:  start,
			IndexCount:  count,
			Topology:    metadata.TopologyTriangles,
		})
		materials = append(materials, material)
	}
	if len(indices) == 0 {
		return nil, core.InvalidArgumentf("obj %s has no faces", guid)
	}

	mesh, err := resources.NewMesh(p.Renderer, guid, resources.MeshReadable|resources.MeshWritable|(p.Flags&resources.MeshDynamic))
	if err != nil {
		return nil, err
	}
	err = mesh.SetGeometry(resources.GeometryData{Positions: positions, UVs: uvs, Normals: normals, Indices: indices})
	if err != nil {
		return nil, err
	}
	if !hasNormal {
		if err := mesh.RecalculateNormals(true); err != nil {
			return nil, err
		}
	}
	// A single object draws as the whole mesh.
	if len(submeshes) > 1 {
		for _, s := range submeshes {
			mesh.AddSubmesh(s)
		}
	}
	mesh.UpdateBounds()
	if p.Flags&resources.MeshWritable == 0 {
		mesh.SetReadOnly()
	}
	return &resources.ModelData{Mesh: mesh, Materials: materials}, nil
}

// attrIndex returns face attribute i when it addresses one of count entries, else -1.
func attrIndex(attrs []int, i, count int) int {
	if i >= len(attrs) || attrs[i] < 0 || attrs[i] >= count {
		return -1
	}
	return attrs[i]
}
