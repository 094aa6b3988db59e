package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/modlens/internal/database"
	"github.com/dbsmedya/modlens/internal/graph"
	"github.com/dbsmedya/modlens/internal/sqlutil"
	"github.com/dbsmedya/modlens/internal/types"
	"github.com/dbsmedya/modlens/internal/verifier"
)

var gameplayFixture = []string{
	`CREATE TABLE Buildings (
		BuildingType TEXT NOT NULL PRIMARY KEY,
		Cost INTEGER NOT NULL
	)`,
	`CREATE TABLE Units (
		UnitType TEXT NOT NULL PRIMARY KEY,
		Name TEXT NOT NULL,
		BaseMoves INTEGER NOT NULL DEFAULT 1,
		Cost INTEGER NOT NULL,
		PrereqBuilding TEXT REFERENCES Buildings(BuildingType)
	)`,
	`CREATE TABLE Unit_BuildingPrereqs (
		Unit TEXT NOT NULL REFERENCES Units(UnitType),
		PrereqBuilding TEXT NOT NULL REFERENCES Buildings(BuildingType),
		PRIMARY KEY (Unit, PrereqBuilding)
	)`,
	`INSERT INTO Buildings VALUES ('BUILDING_BARRACKS', 90), ('BUILDING_ARMORY', 120)`,
	`INSERT INTO Units VALUES
		('UNIT_WARRIOR','LOC_UNIT_WARRIOR_NAME',2,20,NULL),
		('UNIT_ARCHER','LOC_UNIT_ARCHER_NAME',2,60,NULL),
		('UNIT_SWORDSMAN','LOC_UNIT_SWORDSMAN_NAME',2,90,'BUILDING_BARRACKS')`,
	`INSERT INTO Unit_BuildingPrereqs VALUES ('UNIT_SWORDSMAN','BUILDING_BARRACKS')`,
}

type cliFixture struct {
	dir    string
	db     string
	config string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Gameplay.sqlite")

	db, err := sql.Open(database.DriverName(), path)
	require.NoError(t, err)
	for _, stmt := range gameplayFixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	cfg := fmt.Sprintf(`schema:
  sample: %s
variants:
  base: %s
logging:
  level: error
`, path, path)
	cfgPath := filepath.Join(dir, "modlens.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	return &cliFixture{dir: dir, db: path, config: cfgPath}
}

func (f *cliFixture) writeMod(t *testing.T, name, sql string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sql), 0o644))
	return path
}

func (f *cliFixture) checksum(t *testing.T) string {
	t.Helper()
	db, err := database.OpenSample(context.Background(), f.db, 0)
	require.NoError(t, err)
	defer db.Close()
	hash, _, err := verifier.Checksum(context.Background(), db, "Units", []string{"UnitType"})
	require.NoError(t, err)
	return hash
}

// execute runs the root command with fresh command flags and returns what
// was written to the output writer.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	schemaFormat, checkFormat = "text", "text"
	checkVariant, diffVariant = "", ""
	sampleDB, verifyRollback = "", false
	graphTables = nil

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSchemaCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "--config", f.config, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema: "+f.db)
	assert.Contains(t, out, "Unit_BuildingPrereqs")
	assert.Contains(t, strings.ToUpper(out), "3 TABLES")
	assert.Contains(t, out, "Units.PrereqBuilding")
	assert.Contains(t, out, "Buildings.BuildingType")
}

func TestSchemaCommand_JSON(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "--config", f.config, "schema", "--format", "json")
	require.NoError(t, err)

	var view schemaView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Tables, 3)
	assert.Equal(t, []string{"Unit", "PrereqBuilding"}, tableByName(view, "Unit_BuildingPrereqs").PrimaryKey)
	assert.Contains(t, view.ForeignKeys, foreignKeyView{
		From:   "Units.PrereqBuilding",
		To:     "Buildings.BuildingType",
		Origin: string(types.OriginDeclared),
	})
}

func TestSchemaCommand_YAMLAndBadFormat(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "--config", f.config, "schema", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "foreign_keys:")
	assert.Contains(t, out, "primary_key:")

	_, err = execute(t, "--config", f.config, "schema", "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSchemaCommand_SampleOverride(t *testing.T) {
	f := newCLIFixture(t)

	_, err := execute(t, "--config", f.config, "--sample", filepath.Join(f.dir, "missing.sqlite"), "schema")
	assert.Error(t, err)
}

func tableByName(view schemaView, name string) tableView {
	for _, tv := range view.Tables {
		if tv.Name == name {
			return tv
		}
	}
	return tableView{}
}

func TestCheckCommand(t *testing.T) {
	f := newCLIFixture(t)
	before := f.checksum(t)

	mod := f.writeMod(t, "archer.sql", `
INSERT INTO Units (UnitType, Name, Cost) VALUES ('UNIT_SLINGER', 'LOC_UNIT_SLINGER_NAME', 35);
UPDATE Units SET BaseMoves = 10 WHERE UnitType = 'UNIT_ARCHER';
`)

	out, err := execute(t, "--config", f.config, "check", "--variant", "base", mod)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ACCEPTED insert Units (1 record(s))")
	assert.Contains(t, out, "[2] ACCEPTED update Units")
	assert.Contains(t, out, "UNIT_ARCHER  BaseMoves: 2 -> 10")
	assert.Equal(t, before, f.checksum(t), "check must not modify the variant database")
}

func TestCheckCommand_Rejected(t *testing.T) {
	f := newCLIFixture(t)
	mod := f.writeMod(t, "broken.sql", `
INSERT INTO Units (UnitType) VALUES ('UNIT_BROKEN');
UPDATE Uni SET BaseMoves = 1;
DELETE FROM Units WHERE UnitType = 'UNIT_WARRIOR';
`)

	out, err := execute(t, "--config", f.config, "check", "--variant", "base", mod)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 statements rejected")
	assert.Contains(t, out, "missing required column Units.Name")
	assert.Contains(t, out, "table not found: Uni")
	assert.Contains(t, out, "UNIT_WARRIOR  Deleted")
}

func TestCheckCommand_WithoutVariant(t *testing.T) {
	f := newCLIFixture(t)
	mod := f.writeMod(t, "delete.sql", `DELETE FROM Units WHERE UnitType = 'UNIT_WARRIOR';`)

	out, err := execute(t, "--config", f.config, "check", "--format", "json", mod)
	require.NoError(t, err)

	var report struct {
		Variant string `json:"variant"`
		Summary struct {
			Skipped int `json:"skipped"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "", report.Variant)
	assert.Equal(t, 1, report.Summary.Skipped)
}

func TestCheckCommand_UnknownVariant(t *testing.T) {
	f := newCLIFixture(t)
	mod := f.writeMod(t, "delete.sql", `DELETE FROM Units;`)

	_, err := execute(t, "--config", f.config, "check", "--variant", "xp9", mod)
	assert.ErrorContains(t, err, "xp9")
	assert.ErrorContains(t, err, "(configured: [base])")
}

func TestDiffCommand(t *testing.T) {
	f := newCLIFixture(t)
	before := f.checksum(t)

	out, err := execute(t, "--config", f.config, "--verify-rollback", "diff", "--variant", "base",
		"UPDATE Units SET BaseMoves = 10, Cost = Cost + 5 WHERE UnitType IN ('UNIT_ARCHER', 'UNIT_WARRIOR')")
	require.NoError(t, err)
	assert.Contains(t, out, "UPDATE 2 row(s) would change (rolled back)")
	assert.Contains(t, out, "  UNIT_ARCHER   BaseMoves: 2 -> 10\n")
	assert.Contains(t, out, "\n"+strings.Repeat(" ", 16)+"Cost: 60 -> 65\n")
	assert.Contains(t, out, "  UNIT_WARRIOR  BaseMoves: 2 -> 10\n")
	assert.Equal(t, before, f.checksum(t))
}

func TestDiffCommand_Errors(t *testing.T) {
	f := newCLIFixture(t)

	_, err := execute(t, "--config", f.config, "diff", "--variant", "base", "INSERT INTO Units (UnitType) VALUES ('x')")
	assert.ErrorContains(t, err, "UPDATE or DELETE")

	_, err = execute(t, "--config", f.config, "diff", "--variant", "base", "UPDATE Units SET WrongCol = 1")
	assert.ErrorIs(t, err, types.ErrMutationFailed)
	assert.ErrorContains(t, err, "WrongCol")

	out, err := execute(t, "--config", f.config, "diff", "--variant", "base", "DELETE FROM Units WHERE 0")
	require.NoError(t, err)
	assert.Contains(t, out, "No rows would change.")
}

func TestGraphCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "--config", f.config, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Buildings\n")
	assert.Contains(t, out, "[2] Units <- Buildings\n")
	assert.Contains(t, out, "[3] Unit_BuildingPrereqs <- Buildings, Units\n")
	assert.Contains(t, out, "Unload Order (child tables first)")
	assert.Contains(t, out, "Units → Unit_BuildingPrereqs  Unit_BuildingPrereqs.Unit -> Units.UnitType (declared)")
	assert.Contains(t, out, "Cycle:           none")
}

func TestGraphCommand_Table(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "--config", f.config, "graph", "--table", "units")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Buildings\n")
	assert.Contains(t, out, "[2] Units <- Buildings\n")
	assert.NotContains(t, out, "Unit_BuildingPrereqs")
}

func TestGraphCommand_TableErrors(t *testing.T) {
	f := newCLIFixture(t)

	_, err := execute(t, "--config", f.config, "graph", "--table", "Units;DROP")
	var invalidErr *sqlutil.InvalidIdentifierError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "Units;DROP", invalidErr.Name)

	_, err = execute(t, "--config", f.config, "graph", "--table", "Nope")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestRenderGraph_Cycle(t *testing.T) {
	color.Enable = false
	g := graph.NewGraph()
	for _, name := range []string{"A", "B", "C"} {
		g.AddNode(name, &graph.Node{PrimaryKey: []string{"ID"}})
	}
	g.AddEdgeWithMeta("A", "B", graph.EdgeMeta{ForeignKey: "A", ReferenceKey: "ID", Origin: types.OriginMined})
	g.AddEdgeWithMeta("B", "A", graph.EdgeMeta{ForeignKey: "B", ReferenceKey: "ID", Origin: types.OriginMined})
	g.AddEdgeWithMeta("B", "C", graph.EdgeMeta{ForeignKey: "B", ReferenceKey: "ID", Origin: types.OriginDeclared})

	var buf bytes.Buffer
	renderGraph(&buf, g)
	out := buf.String()

	assert.Contains(t, out, "[Cycle]")
	assert.Contains(t, out, "Cycle:           detected")
	assert.NotContains(t, out, "Load Order")
	assert.Contains(t, out, "A → B  B.A -> A.ID (mined)")
}

func TestWriteDiff(t *testing.T) {
	color.Enable = false
	var buf bytes.Buffer
	writeDiff(&buf, types.MutationDiff{
		{Key: "A", Description: types.DeletedDescription},
		{Key: "UNIT_ARCHER", Description: "BaseMoves: 2 -> 10\nCost: 60 -> 65"},
	}, "  ")

	want := "  A            Deleted\n" +
		"  UNIT_ARCHER  BaseMoves: 2 -> 10\n" +
		"               Cost: 60 -> 65\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintSideBySide(t *testing.T) {
	var buf bytes.Buffer
	printSideBySide(&buf, []string{"漢字", "ab"}, []string{"x", "y", "z"}, 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "漢字  x", lines[0])
	assert.Equal(t, "ab    y", lines[1])
	assert.Equal(t, "      z", lines[2])
}

func TestVisualWidth(t *testing.T) {
	assert.Equal(t, 4, visualWidth("漢字"))
	assert.Equal(t, 3, visualWidth("abc"))
	assert.Equal(t, 5, visualWidth(color.Red.Render("Units")))
}
