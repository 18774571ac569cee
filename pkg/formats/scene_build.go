package formats

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/scene"
)

// BuildScene builds a single-node scene from a point-cloud document so it
// can be exported as a mesh. Polygons are fan-triangulated; each triangle
// keeps its polygon's label, color and material. Triangles that reference
// missing points are dropped. The returned faces are the triangles, in the
// order the scene stores them.
func BuildScene(points []document.Point, faces []document.Face) (*scene.Scene, *scene.InteractionMap, []document.Face, error) {
	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator

	var tris []document.Face
	for _, f := range faces {
		for _, t := range f.Triangles() {
			if !inRange(t, len(points)) {
				continue
			}
			tri := document.Face{
				Indices:       []int{t[0], t[1], t[2]},
				LabelID:       f.LabelID,
				Color:         f.Color,
				MaterialIndex: f.MaterialIndex,
			}
			tris = append(tris, tri)
		}
	}

	if len(points) > 0 {
		positions := make([][3]float32, len(points))
		colors := make([][4]uint8, len(points))
		allNormals, allUVs := true, true
		for i, p := range points {
			positions[i] = [3]float32{float32(p.Position[0]), float32(p.Position[1]), float32(p.Position[2])}
			colors[i] = [4]uint8{
				document.ChannelByte(p.Color.R),
				document.ChannelByte(p.Color.G),
				document.ChannelByte(p.Color.B),
				255,
			}
			allNormals = allNormals && p.Normal != nil
			allUVs = allUVs && p.UV != nil
		}

		prim := &gltf.Primitive{
			Mode: gltf.PrimitivePoints,
			Attributes: map[string]int{
				AttrPosition: modeler.WritePosition(doc, positions),
				AttrColor:    modeler.WriteColor(doc, colors),
			},
		}
		if allNormals {
			normals := make([][3]float32, len(points))
			for i, p := range points {
				normals[i] = *p.Normal
			}
			prim.Attributes[AttrNormal] = modeler.WriteNormal(doc, normals)
		}
		if allUVs {
			uvs := make([][2]float32, len(points))
			for i, p := range points {
				uvs[i] = *p.UV
			}
			prim.Attributes[AttrTexCoord] = modeler.WriteTextureCoord(doc, uvs)
		}
		if len(tris) > 0 {
			indices := make([]uint32, 0, len(tris)*3)
			for _, t := range tris {
				indices = append(indices, uint32(t.Indices[0]), uint32(t.Indices[1]), uint32(t.Indices[2]))
			}
			prim.Mode = gltf.PrimitiveTriangles
			prim.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
		}

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "points", Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "points", Mesh: gltf.Index(0)})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	}

	sc, err := scene.New(doc)
	if err != nil {
		return nil, nil, nil, err
	}
	im := scene.NewInteractionMap()
	for _, mn := range sc.MeshNodes() {
		im.Add(mn.ID, len(points), len(tris))
	}
	return sc, im, tris, nil
}

func inRange(t [3]int, n int) bool {
	for _, i := range t {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}
