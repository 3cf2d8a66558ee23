// Package grid 把 GRIB 文件解码为内存中的多维数据集，并可导出为 NetCDF。
package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/John-Robertt/herbie/internal/infra/fsx"
)

// Variable 是数据集中的一个变量。Values 为 Go 切片（可多维），与 Dimensions 一一对应。
type Variable struct {
	Name       string
	Dimensions []string
	Values     any
	Attributes *Attrs
}

// Dataset 是解码后的数据集。
type Dataset struct {
	// Source 记录解码来源（GRIB 路径）。
	Source     string
	Attributes *Attrs
	Variables  []Variable
}

// Variable 按名称查找变量。
func (d *Dataset) Variable(name string) (Variable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Names 返回按字母序排列的变量名。
func (d *Dataset) Names() []string {
	out := make([]string, 0, len(d.Variables))
	for _, v := range d.Variables {
		out = append(out, v.Name)
	}
	sort.Strings(out)
	return out
}

// WriteNetCDF 把数据集写为 classic CDF 文件；先写同目录临时文件再 rename。
func (d *Dataset) WriteNetCDF(path string) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := fsx.EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".part-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName)

	if err := d.writeCDF(tmpName); err != nil {
		return err
	}
	return fsx.Rename(tmpName, path)
}

func (d *Dataset) writeCDF(path string) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	if d.Attributes != nil && len(d.Attributes.Keys()) > 0 {
		if err := cw.AddAttributes(d.Attributes); err != nil {
			_ = cw.Close()
			return fmt.Errorf("写入全局属性失败：%w", err)
		}
	}
	for _, v := range d.Variables {
		attrs := v.Attributes
		if attrs == nil {
			attrs = NewAttrs()
		}
		if err := cw.AddVar(v.Name, api.Variable{Values: v.Values, Dimensions: v.Dimensions, Attributes: attrs}); err != nil {
			_ = cw.Close()
			return fmt.Errorf("写入变量 %q 失败：%w", v.Name, err)
		}
	}
	return cw.Close()
}

// Open 读取 NetCDF（CDF 或 HDF5）文件的根组，读完即关闭文件。
func Open(path string) (*Dataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 NetCDF 失败（%s）：%w", path, err)
	}
	defer g.Close()
	return FromGroup(g)
}

// FromGroup 把 api.Group 的变量与全局属性复制到内存。
func FromGroup(g api.Group) (*Dataset, error) {
	ds := &Dataset{Attributes: copyAttrs(g.Attributes())}
	for _, name := range g.ListVariables() {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("读取变量 %q 失败：%w", name, err)
		}
		ds.Variables = append(ds.Variables, Variable{
			Name:       name,
			Dimensions: append([]string(nil), v.Dimensions...),
			Values:     v.Values,
			Attributes: copyAttrs(v.Attributes),
		})
	}
	return ds, nil
}
