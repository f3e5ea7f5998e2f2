package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/grasping/config"
	"go.viam.com/grasping/grasp"
	// registers all planner backends for config-check.
	_ "go.viam.com/grasping/motionplan/register"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
	"go.viam.com/grasping/web"
	"go.viam.com/grasping/web/client"
)

const (
	flagAddress  = "address"
	flagFile     = "file"
	flagName     = "name"
	flagFilename = "filename"
	flagFrame    = "frame"
	flagX        = "x"
	flagY        = "y"
	flagZ        = "z"
	flagSizeX    = "size-x"
	flagSizeY    = "size-y"
	flagSizeZ    = "size-z"
	flagPlace    = "place"
	flagConfig   = "config"
	flagWatch    = "watch"
)

func poseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagFrame, Value: referenceframe.World, Usage: "frame the pose is given in"},
		&cli.Float64Flag{Name: flagX, Usage: "x position in mm"},
		&cli.Float64Flag{Name: flagY, Usage: "y position in mm"},
		&cli.Float64Flag{Name: flagZ, Usage: "z position in mm"},
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "graspctl",
		Usage:           "interact with a grasping server",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagAddress,
				Value:   "http://" + config.DefaultBindAddress,
				EnvVars: []string{"GRASPCTL_ADDRESS"},
				Usage:   "address of the grasping server",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "reachability",
				Usage:     "check whether a grasp proposal is reachable",
				UsageText: "graspctl reachability --file proposal.json",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagFile, Required: true, Usage: "grasp proposal `FILE`, - for stdin"},
				},
				Action: ReachabilityAction,
			},
			{
				Name:  "execute",
				Usage: "analyze, pick and optionally place with a grasp proposal",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagFile, Required: true, Usage: "grasp proposal `FILE`, - for stdin"},
					&cli.BoolFlag{Name: flagPlace, Usage: "place the object at the given pose after picking"},
				}, poseFlags()...),
				Action: ExecuteAction,
			},
			{
				Name:   "home",
				Usage:  "move the arm to its home target",
				Action: moveAction((*client.Client).HomeArm),
			},
			{
				Name:   "open",
				Usage:  "open the gripper",
				Action: moveAction((*client.Client).OpenHand),
			},
			{
				Name:   "close",
				Usage:  "close the gripper",
				Action: moveAction((*client.Client).CloseHand),
			},
			{
				Name:            "scene",
				Usage:           "work with the planning scene",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:  "add-box",
						Usage: "add a box obstacle",
						Flags: append([]cli.Flag{
							&cli.StringFlag{Name: flagName, Required: true},
							&cli.Float64Flag{Name: flagSizeX, Required: true, Usage: "size along x in mm"},
							&cli.Float64Flag{Name: flagSizeY, Required: true, Usage: "size along y in mm"},
							&cli.Float64Flag{Name: flagSizeZ, Required: true, Usage: "size along z in mm"},
						}, poseFlags()...),
						Action: AddBoxAction,
					},
					{
						Name:  "add-mesh",
						Usage: "add a mesh obstacle, autoscaled to mm",
						Flags: append([]cli.Flag{
							&cli.StringFlag{Name: flagName, Required: true},
							&cli.StringFlag{Name: flagFilename, Required: true, Usage: "mesh `FILE` on the server"},
						}, poseFlags()...),
						Action: AddMeshAction,
					},
					{
						Name:      "remove",
						Usage:     "remove an object",
						ArgsUsage: "<name>",
						Action:    RemoveObjectAction,
					},
					{
						Name:   "list",
						Usage:  "list the objects of the scene",
						Action: ListObjectsAction,
					},
					{
						Name:   "geometries",
						Usage:  "print the scene as geometries",
						Action: GeometriesAction,
					},
				},
			},
			{
				Name:            "models",
				Usage:           "work with the model list",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:   "refresh",
						Usage:  "re-detect the models and replace them in the scene",
						Action: modelsAction((*client.Client).RefreshModels),
					},
					{
						Name:   "reload",
						Usage:  "re-read the model list and replace the models in the scene",
						Action: modelsAction((*client.Client).ReloadModels),
					},
				},
			},
			{
				Name:      "frames",
				Usage:     "print the latest published grasp frames",
				ArgsUsage: "[child frame]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagWatch, Usage: "keep printing frames as they are published"},
				},
				Action: FramesAction,
			},
			{
				Name:   "config-schema",
				Usage:  "print the JSON schema of the server config",
				Action: ConfigSchemaAction,
			},
			{
				Name:  "config-check",
				Usage: "validate a server config file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagConfig, Required: true, Usage: "server config `FILE`"},
				},
				Action: ConfigCheckAction,
			},
		},
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String(flagAddress), nil)
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readProposal(c *cli.Context) (grasp.Proposal, error) {
	var r io.Reader = c.App.Reader
	if path := c.String(flagFile); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return grasp.Proposal{}, err
		}
		//nolint:errcheck
		defer f.Close()
		r = f
	}
	var p grasp.Proposal
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return grasp.Proposal{}, errors.Wrap(err, "could not read grasp proposal")
	}
	return p, nil
}

func poseFromFlags(c *cli.Context) *referenceframe.PoseInFrame {
	return referenceframe.NewPoseInFrame(
		c.String(flagFrame),
		spatialmath.NewPoseFromPoint(r3.Vector{X: c.Float64(flagX), Y: c.Float64(flagY), Z: c.Float64(flagZ)}),
	)
}

// ReachabilityAction is the corresponding Action for 'reachability'.
func ReachabilityAction(c *cli.Context) error {
	p, err := readProposal(c)
	if err != nil {
		return err
	}
	verdict, err := newClient(c).CheckReachability(c.Context, p)
	if err != nil {
		return errors.Wrap(err, "could not check reachability")
	}
	printf(c.App.Writer, "grasp %d: is_possible=%t", verdict.GraspID, verdict.IsPossible)
	return nil
}

// ExecuteAction is the corresponding Action for 'execute'.
func ExecuteAction(c *cli.Context) error {
	p, err := readProposal(c)
	if err != nil {
		return err
	}
	var place *referenceframe.PoseInFrame
	if c.Bool(flagPlace) {
		place = poseFromFlags(c)
	}
	exec, err := newClient(c).Execute(c.Context, p, place)
	if err != nil {
		return errors.Wrap(err, "could not execute grasp")
	}
	stages := make([]string, 0, len(exec.History))
	for _, s := range exec.Stages() {
		stages = append(stages, s.String())
	}
	printf(c.App.Writer, "execution %s: %s", exec.ID, strings.Join(stages, " -> "))
	return nil
}

func moveAction(move func(*client.Client, context.Context) (bool, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		ok, err := move(newClient(c), c.Context)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "success=%t", ok)
		return nil
	}
}

func modelsAction(update func(*client.Client, context.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		return update(newClient(c), c.Context)
	}
}

// AddBoxAction is the corresponding Action for 'scene add-box'.
func AddBoxAction(c *cli.Context) error {
	return newClient(c).AddBox(c.Context, web.AddBoxRequest{
		Name:  c.String(flagName),
		Pose:  poseFromFlags(c),
		SizeX: c.Float64(flagSizeX),
		SizeY: c.Float64(flagSizeY),
		SizeZ: c.Float64(flagSizeZ),
	})
}

// AddMeshAction is the corresponding Action for 'scene add-mesh'.
func AddMeshAction(c *cli.Context) error {
	return newClient(c).AddMesh(c.Context, web.AddMeshRequest{
		Name:     c.String(flagName),
		Pose:     poseFromFlags(c),
		Filename: c.String(flagFilename),
	})
}

// RemoveObjectAction is the corresponding Action for 'scene remove'.
func RemoveObjectAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("an object name is required")
	}
	return newClient(c).RemoveObject(c.Context, name)
}

// ListObjectsAction is the corresponding Action for 'scene list'.
func ListObjectsAction(c *cli.Context) error {
	objects, err := newClient(c).Objects(c.Context)
	if err != nil {
		return errors.Wrap(err, "could not list scene objects")
	}
	for _, obj := range objects {
		pt := obj.Pose.Pose().Point()
		printf(c.App.Writer, "%s\t%s\tframe=%s\tposition=(%g, %g, %g)\tdims=(%g, %g, %g)",
			obj.Name, obj.Kind, obj.Pose.FrameName(), pt.X, pt.Y, pt.Z, obj.Dims.X, obj.Dims.Y, obj.Dims.Z)
	}
	return nil
}

// GeometriesAction is the corresponding Action for 'scene geometries'.
func GeometriesAction(c *cli.Context) error {
	geometries, err := newClient(c).Geometries(c.Context)
	if err != nil {
		return err
	}
	for _, g := range geometries {
		printf(c.App.Writer, "%s", protojson.Format(g))
	}
	return nil
}

// FramesAction is the corresponding Action for 'frames'.
func FramesAction(c *cli.Context) error {
	cl := newClient(c)
	if c.Bool(flagWatch) {
		return cl.WatchFrames(c.Context, func(change web.FrameChange) error {
			return printJSON(c.App.Writer, change)
		})
	}
	if child := c.Args().First(); child != "" {
		frame, err := cl.Frame(c.Context, child)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, frame)
	}
	frames, err := cl.Frames(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, frames)
}

// ConfigSchemaAction is the corresponding Action for 'config-schema'.
func ConfigSchemaAction(c *cli.Context) error {
	return printJSON(c.App.Writer, config.Schema())
}

// ConfigCheckAction is the corresponding Action for 'config-check'.
func ConfigCheckAction(c *cli.Context) error {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "config is valid: planner=%s bind_address=%s", cfg.Planner.Type, cfg.Network.BindAddress)
	return nil
}
